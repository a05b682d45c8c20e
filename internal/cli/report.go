package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kardexapp/kardex/internal/finance"
)

// NewReportCommand creates the financial report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var preset string
	var startStr, endStr string

	cmd := &cobra.Command{
		Use:           "report",
		Short:         "Aggregate revenue, cost and profit for a period",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)

			sel := finance.RangeSelector{Preset: finance.Preset(preset)}
			if sel.Preset == finance.PresetCustom {
				var err error
				sel.Start, err = time.Parse("2006-01-02", startStr)
				if err != nil {
					out.Error("BAD_RANGE", fmt.Sprintf("invalid --start %q, want YYYY-MM-DD", startStr), nil)
					return NewExitError(ExitFailure, "invalid --start")
				}
				sel.End, err = time.Parse("2006-01-02", endStr)
				if err != nil {
					out.Error("BAD_RANGE", fmt.Sprintf("invalid --end %q, want YYYY-MM-DD", endStr), nil)
					return NewExitError(ExitFailure, "invalid --end")
				}
			}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			d := app.Store.Snapshot()
			rep, err := finance.BuildReport(d.Movements, d.ManualMovements, d.Products, sel, time.Now())
			if err != nil {
				out.Error("BAD_RANGE", err.Error(), nil)
				return NewExitError(ExitFailure, err.Error())
			}

			if rootOpts.Format == "json" {
				return out.Success(rep)
			}
			return out.Success(renderReport(rep))
		},
	}

	cmd.Flags().StringVar(&preset, "preset", string(finance.PresetThisMonth),
		"period preset (this_month|last_month|last_30_days|this_quarter|last_quarter|this_year|custom)")
	cmd.Flags().StringVar(&startStr, "start", "", "custom range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "custom range end, inclusive (YYYY-MM-DD)")
	return cmd
}

func renderReport(rep finance.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Period %s to %s\n",
		rep.Start.Format("2006-01-02"),
		rep.End.AddDate(0, 0, -1).Format("2006-01-02"))
	fmt.Fprintf(&b, "Revenue:      %s\n", rep.TotalRevenue.StringFixed(2))
	fmt.Fprintf(&b, "Cost:         %s\n", rep.TotalCost.StringFixed(2))
	fmt.Fprintf(&b, "Gross profit: %s\n", rep.GrossProfit.StringFixed(2))
	fmt.Fprintf(&b, "Net profit:   %s\n", rep.NetProfit.StringFixed(2))
	fmt.Fprintf(&b, "Items sold:   %d", rep.ItemsSold)

	if len(rep.CategorySales) > 0 {
		b.WriteString("\n\nPor categoría:")
		for _, cs := range rep.CategorySales {
			fmt.Fprintf(&b, "\n  %-20s %3d vendidos  %s", cs.Category, cs.ItemsSold, cs.Revenue.StringFixed(2))
		}
	}
	if len(rep.TopProducts) > 0 {
		b.WriteString("\n\nTop productos:")
		for i, pp := range rep.TopProducts {
			fmt.Fprintf(&b, "\n  %d. %s  ganancia %s", i+1, pp.ProductName, pp.Profit.StringFixed(2))
		}
	}
	return b.String()
}
