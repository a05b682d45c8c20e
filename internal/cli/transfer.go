package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kardexapp/kardex/internal/export"
	"github.com/kardexapp/kardex/internal/load"
)

// NewImportCommand groups the batch ingestion commands.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Ingest catalog data from JSON or CSV",
	}
	cmd.AddCommand(newImportJSONCommand(rootOpts))
	cmd.AddCommand(newImportCSVCommand(rootOpts))
	return cmd
}

// reportImport renders a batch result. Row errors exit 1; the valid
// rows were still applied.
func reportImport(out *OutputFormatter, format string, res load.Result) error {
	if format == "json" {
		if len(res.Errors) > 0 {
			out.Error("IMPORT_PARTIAL", fmt.Sprintf("%d row(s) rejected", len(res.Errors)), res)
			return NewExitError(ExitFailure, "some rows were rejected")
		}
		return out.Success(res)
	}

	if len(res.Errors) == 0 {
		return out.Success(fmt.Sprintf("Imported %d record(s)", res.Processed))
	}
	msg := fmt.Sprintf("Imported %d record(s), rejected %d:", res.Processed, len(res.Errors))
	for _, re := range res.Errors {
		msg += fmt.Sprintf("\n  row %d: %s", re.Row, re.Message)
	}
	out.Error("IMPORT_PARTIAL", msg, nil)
	return NewExitError(ExitFailure, "some rows were rejected")
}

func newImportJSONCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "json <file>",
		Short:         "Import a JSON catalog; each loaded variant is seeded with an initial movement",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read import file", err)
			}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Importer.ImportJSON(cmd.Context(), data)
			if err != nil {
				out.Error("IMPORT_FAILED", err.Error(), nil)
				return WrapExitError(ExitCommandError, "import failed", err)
			}
			return reportImport(out, rootOpts.Format, res)
		},
	}
	return cmd
}

func newImportCSVCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "csv <file>",
		Short:         "Apply a CSV bulk update keyed by variant_sku",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			f, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "open import file", err)
			}
			defer f.Close()

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Importer.ImportCSV(cmd.Context(), f)
			if err != nil {
				out.Error("IMPORT_FAILED", err.Error(), nil)
				return WrapExitError(ExitCommandError, "import failed", err)
			}
			return reportImport(out, rootOpts.Format, res)
		},
	}
	return cmd
}

// NewExportCommand groups the export commands.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the catalog as JSON, Markdown or a full backup",
	}
	cmd.AddCommand(newExportJSONCommand(rootOpts))
	cmd.AddCommand(newExportMarkdownCommand(rootOpts))
	cmd.AddCommand(newExportBackupCommand(rootOpts))
	return cmd
}

// writeExport sends rendered bytes to --out or stdout.
func writeExport(cmd *cobra.Command, outPath string, data []byte) error {
	if outPath == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "write export file", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
	return nil
}

func newExportJSONCommand(rootOpts *RootOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:           "json",
		Short:         "Export the catalog as importable JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			data, err := export.Catalog(app.Store.Snapshot())
			if err != nil {
				return WrapExitError(ExitCommandError, "export failed", err)
			}
			return writeExport(cmd, outPath, data)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "write to a file instead of stdout")
	return cmd
}

func newExportMarkdownCommand(rootOpts *RootOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:           "markdown",
		Short:         "Export the catalog as Markdown grouped by tag",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			return writeExport(cmd, outPath, export.Markdown(app.Store.Snapshot()))
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "write to a file instead of stdout")
	return cmd
}

func newExportBackupCommand(rootOpts *RootOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:           "backup",
		Short:         "Export the full state with integrity hashes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			b, err := export.NewBackup(app.Store.Snapshot(), time.Now())
			if err != nil {
				return WrapExitError(ExitCommandError, "build backup", err)
			}
			data, err := export.MarshalBackup(b)
			if err != nil {
				return WrapExitError(ExitCommandError, "encode backup", err)
			}
			return writeExport(cmd, outPath, data)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "write to a file instead of stdout")
	return cmd
}

// NewRestoreCommand creates the backup restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:           "restore <backup-file>",
		Short:         "Replace all data with a backup's contents",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			if err := requireConfirm(out, confirm, "restore"); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read backup file", err)
			}
			restored, err := export.ParseBackup(data)
			if err != nil {
				out.Error("BACKUP_INVALID", err.Error(), nil)
				return NewExitError(ExitFailure, "backup rejected")
			}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Engine.RestoreBackup(cmd.Context(), *restored); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("Restored %d product(s) from %s", len(restored.Products), args[0]))
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the restore")
	return cmd
}
