package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/ledger"
)

// NewManualCommand groups the manual financial movement commands.
func NewManualCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Record financial events outside the stock ledger",
	}
	cmd.AddCommand(newManualAddCommand(rootOpts))
	cmd.AddCommand(newManualDeleteCommand(rootOpts))
	return cmd
}

func newManualAddCommand(rootOpts *RootOptions) *cobra.Command {
	var movType string
	var amount float64
	var description string

	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add an expense, investment or other income",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			mov, err := app.Engine.AddManualMovement(cmd.Context(), ledger.ManualMovementInput{
				Type:        doc.ManualMovementType(movType),
				Amount:      amount,
				Description: description,
			})
			if err != nil {
				return reportEngineError(out, err)
			}
			if rootOpts.Format == "json" {
				return out.Success(mov)
			}
			return out.Success(fmt.Sprintf("Recorded %s of %.2f (id %s)", mov.Type, mov.Amount, mov.ID))
		},
	}

	cmd.Flags().StringVar(&movType, "type", string(doc.ManualExpense), "movement type (expense|investment|other_income)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "signed amount; positive = income")
	cmd.Flags().StringVar(&description, "description", "", "what the movement was for")
	return cmd
}

func newManualDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete <movement-id>",
		Short:         "Delete a manual movement",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Engine.DeleteManualMovement(cmd.Context(), args[0]); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("Deleted manual movement %s", args[0]))
		},
	}
	return cmd
}
