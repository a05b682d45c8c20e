package load

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/ledger"
	"github.com/kardexapp/kardex/internal/store"
	"github.com/kardexapp/kardex/internal/testutil"
)

func setupImporter(t *testing.T) (*Importer, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kardex.db"), "load-test")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Initialize(context.Background()))

	clock := testutil.NewClock()
	return NewImporter(ledger.New(s, clock.Now)), s
}

func TestParseCatalog_SyntheticVariantFromFallbacks(t *testing.T) {
	data := []byte(`[
		{"title": "Gorro de lana", "category": "Ropa", "price": 20, "sku": "GOR-1", "stock": 5},
		{"title": "Pelota", "available": 3}
	]`)

	products, rowErrs, err := ParseCatalog(data)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, products, 2)

	p := products[0]
	require.Len(t, p.Variants, 1)
	v := p.Variants[0]
	assert.Equal(t, SyntheticVariantName, v.Name)
	assert.Equal(t, "GOR-1", v.SKU)
	require.NotNil(t, v.Price)
	assert.Equal(t, 20.0, *v.Price)
	assert.Equal(t, 5, v.Stock)

	assert.Equal(t, 3, products[1].Variants[0].Stock, "available is the stock fallback")
}

func TestParseCatalog_StockWinsOverAvailable(t *testing.T) {
	products, _, err := ParseCatalog([]byte(`[{"title": "X", "stock": 2, "available": 9}]`))
	require.NoError(t, err)
	assert.Equal(t, 2, products[0].Variants[0].Stock)
}

func TestParseCatalog_ExplicitVariants(t *testing.T) {
	data := []byte(`[{
		"title": "Camiseta",
		"variants": [
			{"name": "S", "sku": "CAM-S", "price": 15, "stock": 2},
			{"name": "M", "sku": "CAM-M", "price": 15, "stock": 4}
		]
	}]`)

	products, rowErrs, err := ParseCatalog(data)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, products[0].Variants, 2)
	assert.Equal(t, "S", products[0].Variants[0].Name)
	assert.Equal(t, 4, products[0].Variants[1].Stock)
}

func TestParseCatalog_RejectsBadRowsKeepsGood(t *testing.T) {
	data := []byte(`[
		{"title": "Bueno", "stock": 1},
		{"stock": 1},
		{"title": "Malo", "stock": -4},
		{"title": "También bueno"}
	]`)

	products, rowErrs, err := ParseCatalog(data)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	require.Len(t, rowErrs, 2)
	assert.Equal(t, 1, rowErrs[0].Row, "missing title")
	assert.Equal(t, 2, rowErrs[1].Row, "negative stock")
}

func TestParseCatalog_NotAnArray(t *testing.T) {
	_, _, err := ParseCatalog([]byte(`{"title": "no"}`))
	assert.Error(t, err)
}

func TestParseCatalog_NormalizesTitle(t *testing.T) {
	products, _, err := ParseCatalog([]byte(`[{"title": "  Gorro  "}]`))
	require.NoError(t, err)
	assert.Equal(t, "Gorro", products[0].Title)
}

func TestImportJSON_SeedsInitialMovements(t *testing.T) {
	im, s := setupImporter(t)

	res, err := im.ImportJSON(context.Background(), []byte(`[
		{"title": "Gorro", "category": "Ropa", "price": 20, "stock": 5},
		{"title": "Pelota", "stock": 3}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Empty(t, res.Errors)

	d := s.Snapshot()
	require.Len(t, d.Products, 2)
	for _, p := range d.Products {
		require.Len(t, p.Variants, 1)
		history := d.Ledger(p.Variants[0].ID)
		require.Len(t, history, 1, "every loaded variant gets one initial movement")
		assert.Equal(t, doc.MovementInitial, history[0].Type)
		assert.Equal(t, p.Variants[0].Stock, history[0].NewStock)
	}
	assert.Contains(t, d.AllCategories, "Ropa")
}

func TestImportJSON_PartialBatchStillApplies(t *testing.T) {
	im, s := setupImporter(t)

	res, err := im.ImportJSON(context.Background(), []byte(`[
		{"title": "Bueno", "stock": 1},
		{"title": 42}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Row)
	assert.Len(t, s.Snapshot().Products, 1)
}
