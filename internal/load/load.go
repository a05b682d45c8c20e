// Package load ingests external catalog data: JSON product records
// validated against an embedded CUE schema, and CSV bulk updates keyed
// by variant SKU. Malformed rows are excluded and reported per row;
// everything valid still applies.
package load

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/ledger"
)

//go:embed schema.cue
var schemaSource string

// SyntheticVariantName is the variant minted for records that carry no
// variants array.
const SyntheticVariantName = "Único"

// RowError reports one rejected row. Row is zero-based within the
// input.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result summarizes a batch application.
type Result struct {
	Processed int        `json:"processed"`
	Errors    []RowError `json:"errors,omitempty"`
}

// recordVariant mirrors the variants entries of the import schema.
type recordVariant struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	SKU       string   `json:"sku"`
	Price     *float64 `json:"price"`
	Cost      *float64 `json:"cost"`
	Stock     *int     `json:"stock"`
	ItemCount *int     `json:"item_count"`
}

// record mirrors the flat import schema. Fields beyond the schema are
// dropped on decode.
type record struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Notes       string          `json:"notes"`
	Images      []string        `json:"images"`
	ImageHint   []string        `json:"image_hint"`
	SKU         string          `json:"sku"`
	Price       *float64        `json:"price"`
	Cost        *float64        `json:"cost"`
	Stock       *int            `json:"stock"`
	Available   *int            `json:"available"`
	Variants    []recordVariant `json:"variants"`
}

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error
)

// recordSchema compiles the embedded schema once.
func recordSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource)
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("load: compile schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Record"))
		if err := schemaValue.Err(); err != nil {
			schemaErr = fmt.Errorf("load: schema has no #Record: %w", err)
		}
	})
	return schemaCtx, schemaValue, schemaErr
}

// validateRecord checks one raw JSON object against the schema.
func validateRecord(raw json.RawMessage) error {
	ctx, schema, err := recordSchema()
	if err != nil {
		return err
	}
	v := ctx.CompileBytes(raw)
	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid JSON: %s", cueerrors.Details(err, nil))
	}
	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema violation: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// parsedRow pairs a normalized product with its source row index so
// later application errors still point at the offending row.
type parsedRow struct {
	row     int
	product doc.Product
}

func parseRows(data []byte) ([]parsedRow, []RowError, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, nil, fmt.Errorf("load: input is not a JSON array: %w", err)
	}

	var parsed []parsedRow
	var rowErrs []RowError
	for i, raw := range rows {
		if err := validateRecord(raw); err != nil {
			rowErrs = append(rowErrs, RowError{Row: i, Message: err.Error()})
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			rowErrs = append(rowErrs, RowError{Row: i, Message: fmt.Sprintf("decode: %v", err)})
			continue
		}
		parsed = append(parsed, parsedRow{row: i, product: normalize(rec)})
	}
	return parsed, rowErrs, nil
}

// ParseCatalog decodes and validates a JSON array of product records,
// normalizing each into a catalog product. Records lacking a variants
// array get one synthetic "Único" variant built from the record's
// stock/available/price/sku fallbacks.
func ParseCatalog(data []byte) ([]doc.Product, []RowError, error) {
	parsed, rowErrs, err := parseRows(data)
	if err != nil {
		return nil, nil, err
	}
	products := make([]doc.Product, 0, len(parsed))
	for _, pr := range parsed {
		products = append(products, pr.product)
	}
	return products, rowErrs, nil
}

// normalize converts a validated record into a catalog product.
func normalize(rec record) doc.Product {
	p := doc.Product{
		ID:          rec.ID,
		Category:    rec.Category,
		Title:       doc.NormalizeTitle(rec.Title),
		Description: rec.Description,
		Notes:       rec.Notes,
		Images:      rec.Images,
		ImageHint:   rec.ImageHint,
	}

	if len(rec.Variants) == 0 {
		stock := 0
		if rec.Stock != nil {
			stock = *rec.Stock
		} else if rec.Available != nil {
			stock = *rec.Available
		}
		p.Variants = []doc.Variant{{
			Name:  SyntheticVariantName,
			SKU:   rec.SKU,
			Price: rec.Price,
			Cost:  rec.Cost,
			Stock: stock,
		}}
		return p
	}

	for _, rv := range rec.Variants {
		name := rv.Name
		if name == "" {
			name = SyntheticVariantName
		}
		stock := 0
		if rv.Stock != nil {
			stock = *rv.Stock
		}
		p.Variants = append(p.Variants, doc.Variant{
			ID:        rv.ID,
			Name:      name,
			SKU:       rv.SKU,
			Price:     rv.Price,
			Cost:      rv.Cost,
			Stock:     stock,
			ItemCount: rv.ItemCount,
		})
	}
	return p
}

// Importer applies parsed batches through the ledger engine so every
// loaded variant gets its Initial movement and audit entry.
type Importer struct {
	Engine *ledger.Engine
}

// NewImporter wraps an engine.
func NewImporter(e *ledger.Engine) *Importer {
	return &Importer{Engine: e}
}

// ImportJSON parses, validates and stores a JSON catalog. Each valid
// record is saved individually; a record the engine rejects (for
// example negative stock slipping past the schema) joins the per-row
// error list without aborting the batch.
func (im *Importer) ImportJSON(ctx context.Context, data []byte) (Result, error) {
	parsed, rowErrs, err := parseRows(data)
	if err != nil {
		return Result{}, err
	}

	res := Result{Errors: rowErrs}
	for _, pr := range parsed {
		if err := im.Engine.SaveProduct(ctx, pr.product); err != nil {
			res.Errors = append(res.Errors, RowError{Row: pr.row, Message: fmt.Sprintf("save %q: %v", pr.product.Title, err)})
			continue
		}
		res.Processed++
	}
	return res, nil
}
