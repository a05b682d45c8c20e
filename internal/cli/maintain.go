package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kardexapp/kardex/internal/ledger"
	"github.com/kardexapp/kardex/internal/view"
)

// NewInitCommand creates the database bootstrap command. Opening the
// store already seeds the document and runs the legacy migration, so
// init only reports what happened.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Create the database, seed defaults and migrate legacy data",
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

			path, _ := ResolveDBPath(rootOpts.DBPath)
			if rootOpts.Format == "json" {
				return out.Success(map[string]any{
					"db_path":  path,
					"migrated": app.Migrated,
					"revision": app.Store.Revision(),
				})
			}
			msg := fmt.Sprintf("Store ready at %s (revision %d)", path, app.Store.Revision())
			if app.Migrated {
				msg += "\nLegacy data migrated."
			}
			return out.Success(msg)
		},
	}
	return cmd
}

// NewVerifyCommand creates the invariant check command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "verify",
		Short:         "Check that every variant's stock matches its ledger replay",
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

			violations := ledger.Verify(app.Store.Snapshot())
			if len(violations) == 0 {
				return out.Success("OK: ledger replay matches stored stock everywhere")
			}

			if rootOpts.Format == "json" {
				out.Error("INVARIANT_VIOLATED", fmt.Sprintf("%d violation(s)", len(violations)), violations)
			} else {
				var b strings.Builder
				fmt.Fprintf(&b, "%d violation(s):", len(violations))
				for _, v := range violations {
					fmt.Fprintf(&b, "\n  [%s] %s", v.Kind, v.Message)
				}
				out.Error("INVARIANT_VIOLATED", b.String(), nil)
			}
			return NewExitError(ExitFailure, "ledger invariant violated")
		},
	}
	return cmd
}

// NewRepairCommand creates the duplicate-variant-id repair command.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:           "repair",
		Short:         "Re-key duplicate variant ids, carrying current stock forward",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			if err := requireConfirm(out, confirm, "repair"); err != nil {
				return err
			}
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Engine.RepairDuplicateVariantIDs(cmd.Context())
			if err != nil {
				return reportEngineError(out, err)
			}
			if rootOpts.Format == "json" {
				return out.Success(report)
			}
			if report.RepairedCount == 0 {
				return out.Success("No duplicate variant ids found")
			}
			return out.Success(fmt.Sprintf("Repaired %d variant(s) with duplicate ids: %s",
				report.RepairedCount, strings.Join(report.DuplicateIDs, ", ")))
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the repair")
	return cmd
}

// NewResetCommand creates the full wipe command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:           "reset",
		Short:         "Wipe all data back to seeded defaults",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			if err := requireConfirm(out, confirm, "reset"); err != nil {
				return err
			}
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Engine.ResetAll(cmd.Context()); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success("All data wiped back to defaults")
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the wipe")
	return cmd
}

// NewMigrateCommand runs the legacy migration explicitly and reports
// whether anything moved.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Run the legacy store migration",
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

			if app.Migrated {
				return out.Success("Legacy data migrated")
			}
			return out.Success("Nothing to migrate")
		},
	}
	return cmd
}

// NewWatchCommand tails changes made by other processes against the
// same database file.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:           "watch",
		Short:         "Print a line whenever the document changes, until interrupted",
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

			mat, err := view.New(app.Store)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build view", err)
			}
			defer mat.Close()

			changes := mat.Changes()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for snap := range changes {
					if rootOpts.Format == "json" {
						out.Success(map[string]any{
							"revision": snap.Revision,
							"products": len(snap.Products),
							"visible":  len(snap.VisibleProducts()),
						})
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "revision %d: %d product(s), %d visible\n",
						snap.Revision, len(snap.Products), len(snap.VisibleProducts()))
				}
			}()

			out.VerboseLog("watching every %s", interval)
			app.Store.Watch(cmd.Context(), interval)
			mat.Close()
			<-done
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 750*time.Millisecond, "poll interval")
	return cmd
}
