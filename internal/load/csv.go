package load

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/ledger"
)

// CSV column names. variant_sku is required; the rest are optional and
// unrecognized columns are ignored.
const (
	colSKU   = "variant_sku"
	colPrice = "variant_price"
	colCost  = "variant_cost"
	colStock = "variant_stock"
)

// csvRow is one parsed update keyed by SKU.
type csvRow struct {
	row   int
	sku   string
	price *float64
	cost  *float64
	stock *int
}

// parseCSV reads the header and rows. Row indices are zero-based over
// data rows, the header does not count.
func parseCSV(r io.Reader) ([]csvRow, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("load: read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols[colSKU]; !ok {
		return nil, nil, fmt.Errorf("load: CSV is missing the %s column", colSKU)
	}

	var rows []csvRow
	var rowErrs []RowError
	for i := 0; ; i++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i, Message: fmt.Sprintf("malformed CSV row: %v", err)})
			continue
		}

		row := csvRow{row: i, sku: strings.TrimSpace(fields[cols[colSKU]])}
		if row.sku == "" {
			rowErrs = append(rowErrs, RowError{Row: i, Message: "empty variant_sku"})
			continue
		}

		bad := false
		if v, ok := cellAt(fields, cols, colPrice); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				rowErrs = append(rowErrs, RowError{Row: i, Message: fmt.Sprintf("invalid variant_price %q", v)})
				bad = true
			} else {
				row.price = &f
			}
		}
		if v, ok := cellAt(fields, cols, colCost); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				rowErrs = append(rowErrs, RowError{Row: i, Message: fmt.Sprintf("invalid variant_cost %q", v)})
				bad = true
			} else {
				row.cost = &f
			}
		}
		if v, ok := cellAt(fields, cols, colStock); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				rowErrs = append(rowErrs, RowError{Row: i, Message: fmt.Sprintf("invalid variant_stock %q", v)})
				bad = true
			} else {
				row.stock = &n
			}
		}
		if bad {
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func cellAt(fields []string, cols map[string]int, name string) (string, bool) {
	idx, ok := cols[name]
	if !ok || idx >= len(fields) {
		return "", false
	}
	v := strings.TrimSpace(fields[idx])
	return v, v != ""
}

// ImportCSV applies a bulk update keyed by variant_sku. Price and cost
// are written directly; a changed stock becomes exactly one Adjustment
// movement so the ledger stays the source of truth. Rows with an
// unknown SKU or a bad number go to the error list, valid rows still
// apply.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (Result, error) {
	rows, rowErrs, err := parseCSV(r)
	if err != nil {
		return Result{}, err
	}
	res := Result{Errors: rowErrs}

	for _, row := range rows {
		variantID, currentStock, err := im.lookupSKU(row.sku)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row.row, Message: err.Error()})
			continue
		}

		if row.price != nil || row.cost != nil {
			err := im.Engine.Store().Change(ctx, "csv bulk update", func(d *doc.Document) error {
				_, v := d.FindVariant(variantID)
				if v == nil {
					return &ledger.OpError{Code: ledger.ErrCodeVariantNotFound, Message: "variant not found", VariantID: variantID}
				}
				if row.price != nil {
					v.Price = row.price
				}
				if row.cost != nil {
					v.Cost = row.cost
				}
				return nil
			})
			if err != nil {
				res.Errors = append(res.Errors, RowError{Row: row.row, Message: err.Error()})
				continue
			}
		}

		if row.stock != nil && *row.stock != currentStock {
			_, err := im.Engine.AppendMovement(ctx, variantID, ledger.MovementInput{
				Type:   doc.MovementAdjustment,
				Change: *row.stock - currentStock,
				Notes:  "CSV bulk update",
			})
			if err != nil {
				res.Errors = append(res.Errors, RowError{Row: row.row, Message: err.Error()})
				continue
			}
		}

		res.Processed++
	}
	return res, nil
}

// lookupSKU resolves a SKU to its variant id and current stock.
func (im *Importer) lookupSKU(sku string) (string, int, error) {
	d := im.Engine.Store().Snapshot()
	if d == nil {
		return "", 0, fmt.Errorf("store not initialized")
	}
	for i := range d.Products {
		for j := range d.Products[i].Variants {
			v := &d.Products[i].Variants[j]
			if v.SKU == sku {
				return v.ID, v.Stock, nil
			}
		}
	}
	return "", 0, fmt.Errorf("no variant with SKU %q", sku)
}
