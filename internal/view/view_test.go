package view

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/store"
)

func setupView(t *testing.T) (*store.Store, *Materializer) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kardex.db"), "view-test")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Initialize(context.Background()))

	m, err := New(s)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return s, m
}

func addProduct(t *testing.T, s *store.Store, id, title string) {
	t.Helper()
	require.NoError(t, s.Change(context.Background(), "add product", func(d *doc.Document) error {
		d.Products = append(d.Products, doc.Product{
			ID: id, Category: "Ropa", Title: title,
			Variants: []doc.Variant{{ID: id + "-v", Name: "Único", Stock: 1}},
		})
		return nil
	}))
}

func TestCurrent_ReflectsCommittedState(t *testing.T) {
	s, m := setupView(t)

	snap := m.Current()
	assert.Empty(t, snap.Products)
	assert.Equal(t, doc.DefaultCategories(), snap.AllCategories)
	assert.Equal(t, "grid", snap.Preferences.ViewMode)

	addProduct(t, s, "p1", "Gorro")
	snap = m.Current()
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "Gorro", snap.Products[0].Title)
	assert.Greater(t, snap.Revision, int64(0))
}

func TestSnapshot_IsIsolatedFromLiveDocument(t *testing.T) {
	s, m := setupView(t)
	addProduct(t, s, "p1", "Gorro")

	snap := m.Current()
	snap.Products[0].Title = "mutated by consumer"

	assert.Equal(t, "Gorro", s.Snapshot().Products[0].Title)
	assert.Equal(t, "Gorro", m.Current().Products[0].Title)
}

func TestUnchangedCollectionsKeepTheirReference(t *testing.T) {
	s, m := setupView(t)
	addProduct(t, s, "p1", "Gorro")

	before := m.Current()
	require.NoError(t, s.Change(context.Background(), "toggle view", func(d *doc.Document) error {
		d.Preferences.ViewMode = "list"
		return nil
	}))
	after := m.Current()

	assert.Equal(t, "list", after.Preferences.ViewMode)
	assert.Same(t, &before.Products[0], &after.Products[0],
		"untouched products collection must keep its backing array")
	assert.Same(t, &before.AllCategories[0], &after.AllCategories[0])
}

func TestChangedCollectionGetsFreshCopy(t *testing.T) {
	s, m := setupView(t)
	addProduct(t, s, "p1", "Gorro")

	before := m.Current()
	addProduct(t, s, "p2", "Collar")
	after := m.Current()

	require.Len(t, after.Products, 2)
	assert.NotSame(t, &before.Products[0], &after.Products[0])
}

func TestChanges_CoalescesToLatest(t *testing.T) {
	s, m := setupView(t)

	// Drain the snapshot published on construction, if any.
	select {
	case <-m.Changes():
	default:
	}

	addProduct(t, s, "p1", "Gorro")
	addProduct(t, s, "p2", "Collar")
	addProduct(t, s, "p3", "Pelota")

	snap := <-m.Changes()
	assert.Len(t, snap.Products, 3, "slow reader sees the latest snapshot only")

	select {
	case extra := <-m.Changes():
		t.Fatalf("expected no backlog, got snapshot with %d products", len(extra.Products))
	default:
	}
}

func TestVisibleProducts(t *testing.T) {
	s, m := setupView(t)
	addProduct(t, s, "p1", "Gorro")
	addProduct(t, s, "p2", "Collar")
	require.NoError(t, s.Change(context.Background(), "ignore product", func(d *doc.Document) error {
		d.IgnoredProductIDs = append(d.IgnoredProductIDs, "p2")
		return nil
	}))

	snap := m.Current()
	visible := snap.VisibleProducts()
	require.Len(t, visible, 1)
	assert.Equal(t, "p1", visible[0].ID)

	snap.Preferences.ShowIgnored = true
	assert.Len(t, snap.VisibleProducts(), 2)
}
