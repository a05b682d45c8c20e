package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/ledger"
)

// NewStockCommand groups the ledger commands.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Work with variant movement ledgers",
	}
	cmd.AddCommand(newStockAddCommand(rootOpts))
	cmd.AddCommand(newStockListCommand(rootOpts))
	cmd.AddCommand(newStockDeleteCommand(rootOpts))
	return cmd
}

func newStockAddCommand(rootOpts *RootOptions) *cobra.Command {
	var movType string
	var change int
	var notes string

	cmd := &cobra.Command{
		Use:           "add <variant-id>",
		Short:         "Append a movement; stock is recomputed from the ledger",
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

			mov, err := app.Engine.AppendMovement(cmd.Context(), args[0], ledger.MovementInput{
				Type:   doc.MovementType(movType),
				Change: change,
				Notes:  notes,
			})
			if err != nil {
				return reportEngineError(out, err)
			}
			if rootOpts.Format == "json" {
				return out.Success(mov)
			}
			return out.Success(fmt.Sprintf("%s %+d, stock is now %d", mov.Type, mov.Change, mov.NewStock))
		},
	}

	cmd.Flags().StringVar(&movType, "type", string(doc.MovementAdjustment), "movement type (sale|stock_in|adjustment)")
	cmd.Flags().IntVar(&change, "change", 0, "signed stock change")
	cmd.Flags().StringVar(&notes, "notes", "", "movement notes")
	return cmd
}

func newStockListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list <variant-id>",
		Short:         "List a variant's ledger, oldest first",
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

			d := app.Store.Snapshot()
			if _, v := d.FindVariant(args[0]); v == nil {
				return reportEngineError(out, &ledger.OpError{
					Code: ledger.ErrCodeVariantNotFound, Message: "variant not found", VariantID: args[0]})
			}
			history := ledger.Replay(d.Ledger(args[0]))

			if rootOpts.Format == "json" {
				return out.Success(history)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d movement(s)", len(history))
			for _, m := range history {
				ts := time.UnixMilli(m.Timestamp).UTC().Format("2006-01-02 15:04")
				fmt.Fprintf(&b, "\n%s  %s  %-10s %+d -> %d", m.ID, ts, m.Type, m.Change, m.NewStock)
				if m.Notes != "" {
					fmt.Fprintf(&b, "  (%s)", m.Notes)
				}
			}
			return out.Success(b.String())
		},
	}
	return cmd
}

func newStockDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var movementIDs []string
	var confirm bool

	cmd := &cobra.Command{
		Use:           "delete <variant-id>",
		Short:         "Delete movements and recompute the ledger",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			if err := requireConfirm(out, confirm, "movement delete"); err != nil {
				return err
			}
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Engine.DeleteMovements(cmd.Context(), args[0], movementIDs); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("Deleted %d movement(s) and recomputed the ledger", len(movementIDs)))
		},
	}

	cmd.Flags().StringSliceVar(&movementIDs, "movements", nil, "movement ids to delete")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the deletion")
	return cmd
}
