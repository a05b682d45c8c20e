package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kardexapp/kardex/internal/doc"
)

func TestBulkEdit_CategoryAndTags(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	p1, _ := addProduct(t, e, "Abrigo polar", 1)
	p2, _ := addProduct(t, e, "Collar cuero", 1)
	p3, _ := addProduct(t, e, "Cama XL", 1)

	category := "Invierno"
	require.NoError(t, e.BulkEdit(ctx, []string{p1, p2}, BulkChanges{
		Category: &category,
		AddTags:  []string{"oferta", "nuevo"},
	}))

	d := s.Snapshot()
	assert.Equal(t, "Invierno", d.FindProduct(p1).Category)
	assert.Equal(t, "Invierno", d.FindProduct(p2).Category)
	assert.Equal(t, "Ropa", d.FindProduct(p3).Category, "unselected product untouched")
	assert.ElementsMatch(t, []string{"oferta", "nuevo"}, d.FindProduct(p1).ImageHint)
	assert.Contains(t, d.AllCategories, "Invierno")
	assert.Equal(t, "bulk_edit", d.AuditLog[0].Type)
}

func TestBulkEdit_TagsUnionNeverRemoves(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	p1, _ := addProduct(t, e, "Abrigo polar", 1)
	require.NoError(t, e.BulkEdit(ctx, []string{p1}, BulkChanges{AddTags: []string{"oferta"}}))
	require.NoError(t, e.BulkEdit(ctx, []string{p1}, BulkChanges{AddTags: []string{"oferta", "rebaja"}}))

	assert.ElementsMatch(t, []string{"oferta", "rebaja"}, s.Snapshot().FindProduct(p1).ImageHint)
}

func TestBulkIgnore_SubsetOfIgnoredIDs(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	p1, _ := addProduct(t, e, "Abrigo polar", 1)
	p2, _ := addProduct(t, e, "Collar cuero", 1)

	require.NoError(t, e.BulkIgnore(ctx, []string{p1, p2}))
	require.NoError(t, e.BulkIgnore(ctx, []string{p1})) // idempotent union

	ignored := s.Snapshot().IgnoredProductIDs
	assert.Contains(t, ignored, p1)
	assert.Contains(t, ignored, p2)
	assert.Contains(t, ignored, doc.BannerID, "seeded sentinel survives")

	counts := map[string]int{}
	for _, id := range ignored {
		counts[id]++
	}
	for id, n := range counts {
		assert.Equal(t, 1, n, "ignored id %q duplicated", id)
	}
}

func TestBulkEdit_NoMatchCommitsNothing(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	addProduct(t, e, "Abrigo polar", 1)
	before := s.Revision()
	auditBefore := len(s.Snapshot().AuditLog)

	category := "Invierno"
	require.NoError(t, e.BulkEdit(ctx, []string{"missing-a", "missing-b"}, BulkChanges{Category: &category}))

	assert.Equal(t, before, s.Revision(), "no selected id matched, nothing to commit")
	assert.Len(t, s.Snapshot().AuditLog, auditBefore)
}

func TestBulkIgnore_AllAlreadyIgnoredCommitsNothing(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	p1, _ := addProduct(t, e, "Abrigo polar", 1)
	require.NoError(t, e.BulkIgnore(ctx, []string{p1}))

	before := s.Revision()
	auditBefore := len(s.Snapshot().AuditLog)
	require.NoError(t, e.BulkIgnore(ctx, []string{p1}))

	assert.Equal(t, before, s.Revision())
	assert.Len(t, s.Snapshot().AuditLog, auditBefore)
}

func TestBulkDelete_NoMatchCommitsNothing(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	addProduct(t, e, "Abrigo polar", 1)
	before := s.Revision()

	require.NoError(t, e.BulkDelete(ctx, []string{"missing"}))

	assert.Equal(t, before, s.Revision())
	assert.Len(t, s.Snapshot().Products, 1)
}

func TestBulkDelete_SetEquality(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	p1, v1 := addProduct(t, e, "Abrigo polar", 1)
	p2, _ := addProduct(t, e, "Collar cuero", 1)
	p3, _ := addProduct(t, e, "Cama XL", 1)

	require.NoError(t, e.BulkDelete(ctx, []string{p1, p3}))

	d := s.Snapshot()
	assert.Nil(t, d.FindProduct(p1))
	assert.Nil(t, d.FindProduct(p3))
	require.NotNil(t, d.FindProduct(p2))
	assert.Len(t, d.Products, 1)
	assert.Len(t, d.Ledger(v1), 1, "ledgers retained after bulk delete")
}

func TestLoadBulk_ReplacesProductsUnionsCategories(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	_, v1 := addProduct(t, e, "Abrigo polar", 5)

	require.NoError(t, e.LoadBulk(ctx, []doc.Product{
		{ID: "n1", Category: "Camas", Title: "Cama nueva", Variants: []doc.Variant{{ID: "nv1", Name: "Único", Stock: 2}}},
		{ID: "n2", Category: "Ropa", Title: "Chaleco", Variants: []doc.Variant{{ID: "nv2", Name: "Único", Stock: 0}}},
	}))

	d := s.Snapshot()
	assert.Len(t, d.Products, 2)
	assert.Contains(t, d.AllCategories, "Camas")
	assert.Len(t, d.Ledger(v1), 1, "movements untouched by bulk load")
	assert.Empty(t, d.Ledger("nv1"), "bulk load seeds no movements; callers decide")
}

func TestLoadBulk_RejectsVariantlessProduct(t *testing.T) {
	e, _ := setupEngine(t)
	err := e.LoadBulk(context.Background(), []doc.Product{{ID: "x", Title: "Sin variantes"}})
	assert.True(t, IsRejected(err))
}

func TestManualMovements_AddAndDelete(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	m, err := e.AddManualMovement(ctx, ManualMovementInput{
		Type: doc.ManualExpense, Amount: -120.5, Description: "Bolsas de envío",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	require.Len(t, s.Snapshot().ManualMovements, 1)

	_, err = e.AddManualMovement(ctx, ManualMovementInput{Type: doc.ManualExpense, Amount: 0})
	assert.True(t, IsRejected(err), "zero amount rejected")
	_, err = e.AddManualMovement(ctx, ManualMovementInput{Type: "bogus", Amount: 5})
	assert.True(t, IsRejected(err), "unknown type rejected")

	require.NoError(t, e.DeleteManualMovement(ctx, m.ID))
	assert.Empty(t, s.Snapshot().ManualMovements)
	assert.True(t, IsNotFound(e.DeleteManualMovement(ctx, m.ID)))
}

func TestSetPreference(t *testing.T) {
	e, s := setupEngine(t)

	require.NoError(t, e.SetPreference(context.Background(), func(p *doc.Preferences) {
		p.ViewMode = "list"
		p.SearchTerm = "collar"
	}))

	prefs := s.Snapshot().Preferences
	assert.Equal(t, "list", prefs.ViewMode)
	assert.Equal(t, "collar", prefs.SearchTerm)
}

func TestResetAll_BackToDefaults(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	addProduct(t, e, "Abrigo polar", 5)
	_, err := e.AddManualMovement(ctx, ManualMovementInput{Type: doc.ManualInvestment, Amount: -300, Description: "Stock inicial"})
	require.NoError(t, err)

	require.NoError(t, e.ResetAll(ctx))

	d := s.Snapshot()
	assert.Empty(t, d.Products)
	assert.Empty(t, d.ManualMovements)
	assert.Empty(t, d.Movements)
	assert.Equal(t, doc.DefaultCategories(), d.AllCategories)
	require.Len(t, d.AuditLog, 1)
	assert.Equal(t, "full_reset", d.AuditLog[0].Type)
}

func TestRestoreBackup_ReplacesDocument(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	addProduct(t, e, "Se pierde", 1)

	backup := doc.NewDocument()
	backup.Products = []doc.Product{{ID: "b1", Title: "Restaurado", Variants: []doc.Variant{{ID: "bv1", Name: "Único", Stock: 4}}}}
	backup.Movements["bv1"] = []doc.Movement{{ID: "bm1", VariantID: "bv1", Timestamp: 1000, Type: doc.MovementInitial, Change: 4, NewStock: 4}}

	require.NoError(t, e.RestoreBackup(ctx, *backup))

	d := s.Snapshot()
	require.Len(t, d.Products, 1)
	assert.Equal(t, "Restaurado", d.Products[0].Title)
	assert.Len(t, d.Ledger("bv1"), 1)
	assert.Equal(t, "backup_restore", d.AuditLog[0].Type)
	assert.Empty(t, Verify(d))
}
