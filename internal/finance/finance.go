// Package finance is the read-side aggregator over the stock ledger and
// manual financial movements. Everything is pure: callers pass the
// collections and a fixed "now", and two calls with identical inputs
// return identical reports. Money is decimal throughout; float rounding
// must never change a profit figure.
package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kardexapp/kardex/internal/doc"
)

// Preset names a relative date range resolved against "now".
type Preset string

const (
	PresetThisMonth   Preset = "this_month"
	PresetLastMonth   Preset = "last_month"
	PresetLast30Days  Preset = "last_30_days"
	PresetThisQuarter Preset = "this_quarter"
	PresetLastQuarter Preset = "last_quarter"
	PresetThisYear    Preset = "this_year"
	PresetCustom      Preset = "custom"
)

// RangeSelector picks the reporting window. Start/End are only read for
// PresetCustom; End is inclusive to the end of its day.
type RangeSelector struct {
	Preset Preset
	Start  time.Time
	End    time.Time
}

// Resolve computes the concrete [start, end) window for a selector,
// relative to now. End is exclusive.
func (r RangeSelector) Resolve(now time.Time) (time.Time, time.Time, error) {
	loc := now.Location()
	switch r.Preset {
	case PresetThisMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case PresetLastMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -1, 0)
		return start, start.AddDate(0, 1, 0), nil
	case PresetLast30Days:
		end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		return end.AddDate(0, 0, -30), end, nil
	case PresetThisQuarter:
		start := quarterStart(now)
		return start, start.AddDate(0, 3, 0), nil
	case PresetLastQuarter:
		start := quarterStart(now).AddDate(0, -3, 0)
		return start, start.AddDate(0, 3, 0), nil
	case PresetThisYear:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil
	case PresetCustom:
		if r.End.Before(r.Start) {
			return time.Time{}, time.Time{}, fmt.Errorf("finance: custom range end %s before start %s",
				r.End.Format("2006-01-02"), r.Start.Format("2006-01-02"))
		}
		start := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, loc)
		end := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("finance: unknown preset %q", r.Preset)
	}
}

func quarterStart(now time.Time) time.Time {
	q := (int(now.Month()) - 1) / 3
	return time.Date(now.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, now.Location())
}

// ReportMovement is one ledger movement enriched with catalog names for
// display.
type ReportMovement struct {
	doc.Movement
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
}

// CategorySales is the sales rollup for one category.
type CategorySales struct {
	Category  string          `json:"category"`
	ItemsSold int             `json:"items_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// ProductProfit is one entry of the top-products ranking.
type ProductProfit struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ItemsSold   int             `json:"items_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
	Profit      decimal.Decimal `json:"profit"`
}

// Report is the aggregated financial view for one resolved window.
type Report struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"` // exclusive

	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	ItemsSold    int             `json:"items_sold"`

	CategorySales []CategorySales  `json:"category_sales"`
	TopProducts   []ProductProfit  `json:"top_products"`
	Movements     []ReportMovement `json:"movements"`

	ManualTotal decimal.Decimal      `json:"manual_total"`
	Manuals     []doc.ManualMovement `json:"manuals"`
}

// variantOwner resolves a variant id to its product and variant.
type variantOwner struct {
	product *doc.Product
	variant *doc.Variant
}

// BuildReport aggregates the window selected by sel. Revenue and cost
// accrue only from Sale movements' captured price/cost snapshots, so
// editing a product's price later never rewrites historical profit.
// Manual movement amounts are signed, positive means income.
func BuildReport(movs map[string][]doc.Movement, manuals []doc.ManualMovement,
	products []doc.Product, sel RangeSelector, now time.Time) (Report, error) {

	start, end, err := sel.Resolve(now)
	if err != nil {
		return Report{}, err
	}
	startMs, endMs := start.UnixMilli(), end.UnixMilli()

	owners := make(map[string]variantOwner)
	for i := range products {
		p := &products[i]
		for j := range p.Variants {
			owners[p.Variants[j].ID] = variantOwner{product: p, variant: &p.Variants[j]}
		}
	}

	rep := Report{
		Start:        start,
		End:          end,
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
		GrossProfit:  decimal.Zero,
		NetProfit:    decimal.Zero,
		ManualTotal:  decimal.Zero,
	}

	byCategory := make(map[string]*CategorySales)
	byProduct := make(map[string]*ProductProfit)

	for variantID, ledger := range movs {
		owner := owners[variantID]
		for _, m := range ledger {
			if m.Timestamp < startMs || m.Timestamp >= endMs {
				continue
			}
			rm := ReportMovement{Movement: m}
			if owner.product != nil {
				rm.ProductID = owner.product.ID
				rm.ProductName = owner.product.Title
				rm.VariantName = owner.variant.Name
			}
			rep.Movements = append(rep.Movements, rm)

			if m.Type != doc.MovementSale {
				continue
			}
			qty := -m.Change // sales carry negative stock change
			if qty <= 0 {
				continue
			}
			price := snapshotDecimal(m.SalePrice)
			cost := snapshotDecimal(m.SaleCost)
			revenue := price.Mul(decimal.NewFromInt(int64(qty)))
			totalCost := cost.Mul(decimal.NewFromInt(int64(qty)))

			rep.ItemsSold += qty
			rep.TotalRevenue = rep.TotalRevenue.Add(revenue)
			rep.TotalCost = rep.TotalCost.Add(totalCost)

			category := "Sin categoría"
			if owner.product != nil && owner.product.Category != "" {
				category = owner.product.Category
			}
			cs := byCategory[category]
			if cs == nil {
				cs = &CategorySales{Category: category, Revenue: decimal.Zero}
				byCategory[category] = cs
			}
			cs.ItemsSold += qty
			cs.Revenue = cs.Revenue.Add(revenue)

			if owner.product != nil {
				pp := byProduct[owner.product.ID]
				if pp == nil {
					pp = &ProductProfit{
						ProductID:   owner.product.ID,
						ProductName: owner.product.Title,
						Revenue:     decimal.Zero,
						Profit:      decimal.Zero,
					}
					byProduct[owner.product.ID] = pp
				}
				pp.ItemsSold += qty
				pp.Revenue = pp.Revenue.Add(revenue)
				pp.Profit = pp.Profit.Add(revenue.Sub(totalCost))
			}
		}
	}

	for _, mm := range manuals {
		if mm.Timestamp < startMs || mm.Timestamp >= endMs {
			continue
		}
		rep.Manuals = append(rep.Manuals, mm)
		rep.ManualTotal = rep.ManualTotal.Add(decimal.NewFromFloat(mm.Amount))
	}

	rep.GrossProfit = rep.TotalRevenue.Sub(rep.TotalCost)
	rep.NetProfit = rep.GrossProfit.Add(rep.ManualTotal)

	sort.Slice(rep.Movements, func(i, j int) bool {
		if rep.Movements[i].Timestamp != rep.Movements[j].Timestamp {
			return rep.Movements[i].Timestamp < rep.Movements[j].Timestamp
		}
		return rep.Movements[i].ID < rep.Movements[j].ID
	})
	sort.Slice(rep.Manuals, func(i, j int) bool {
		return rep.Manuals[i].Timestamp < rep.Manuals[j].Timestamp
	})

	for _, cs := range byCategory {
		rep.CategorySales = append(rep.CategorySales, *cs)
	}
	sort.Slice(rep.CategorySales, func(i, j int) bool {
		if !rep.CategorySales[i].Revenue.Equal(rep.CategorySales[j].Revenue) {
			return rep.CategorySales[i].Revenue.GreaterThan(rep.CategorySales[j].Revenue)
		}
		return rep.CategorySales[i].Category < rep.CategorySales[j].Category
	})

	for _, pp := range byProduct {
		rep.TopProducts = append(rep.TopProducts, *pp)
	}
	sort.Slice(rep.TopProducts, func(i, j int) bool {
		if !rep.TopProducts[i].Profit.Equal(rep.TopProducts[j].Profit) {
			return rep.TopProducts[i].Profit.GreaterThan(rep.TopProducts[j].Profit)
		}
		return rep.TopProducts[i].ProductName < rep.TopProducts[j].ProductName
	})
	if len(rep.TopProducts) > 5 {
		rep.TopProducts = rep.TopProducts[:5]
	}

	return rep, nil
}

// snapshotDecimal converts a captured price/cost pointer, treating a
// missing snapshot as zero.
func snapshotDecimal(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}
