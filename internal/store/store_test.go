package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kardexapp/kardex/internal/doc"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kardex.db")
	s, err := Open(path, "test-actor")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kardex.db")

	s, err := Open(path, "actor-a")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_EmptyActor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kardex.db")
	if _, err := Open(path, ""); err == nil {
		t.Error("expected error for empty actor, got nil")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kardex.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path, "actor-a")
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path, "actor-a")
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"document", "change_log", "legacy_kv"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestInitialize_SeedsDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	d := s.Snapshot()
	if d == nil {
		t.Fatal("Snapshot() returned nil after Initialize")
	}
	if len(d.Products) != 0 {
		t.Errorf("expected empty products, got %d", len(d.Products))
	}
	if d.Preferences.ViewMode != "grid" {
		t.Errorf("expected default view mode grid, got %q", d.Preferences.ViewMode)
	}
	if len(d.IgnoredProductIDs) != 1 || d.IgnoredProductIDs[0] != doc.BannerID {
		t.Errorf("expected seeded ignored ids [banner], got %v", d.IgnoredProductIDs)
	}
	if len(d.AllCategories) == 0 {
		t.Error("expected seeded categories, got none")
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("first Initialize() failed: %v", err)
	}
	if err := s.Change(ctx, "add product", func(d *doc.Document) error {
		d.Products = append(d.Products, doc.Product{ID: "p1", Title: "Collar", Variants: []doc.Variant{{ID: "v1", Name: "Único"}}})
		return nil
	}); err != nil {
		t.Fatalf("Change() failed: %v", err)
	}

	// Re-initializing must not reseed or lose data.
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() failed: %v", err)
	}
	if got := len(s.Snapshot().Products); got != 1 {
		t.Errorf("re-initialize lost data: %d products", got)
	}
}

func TestInitialize_ConcurrentCallersShareOneDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Initialize(ctx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Initialize() caller %d failed: %v", i, err)
		}
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM document").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 document row, got %d", count)
	}
}

func TestChange_BeforeInitialize(t *testing.T) {
	s := openTestStore(t)

	err := s.Change(context.Background(), "noop", func(*doc.Document) error { return nil })
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestChange_CommitsAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if err := s.Change(ctx, "add product", func(d *doc.Document) error {
		d.Products = append(d.Products, doc.Product{ID: "p1", Title: "Hueso", Variants: []doc.Variant{{ID: "v1", Name: "Único", Stock: 3}}})
		d.Movements["v1"] = []doc.Movement{{ID: "m1", VariantID: "v1", Timestamp: 1, Type: doc.MovementInitial, Change: 3, NewStock: 3}}
		return nil
	}); err != nil {
		t.Fatalf("Change() failed: %v", err)
	}

	if got := s.Revision(); got != 2 {
		t.Errorf("expected revision 2 after seed+change, got %d", got)
	}

	// Durability: a second store against the same file sees the change.
	s2, err := Open(s.dbPathForTest(t), "actor-b")
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()
	if err := s2.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() failed: %v", err)
	}
	d := s2.Snapshot()
	if len(d.Products) != 1 || d.Products[0].ID != "p1" {
		t.Errorf("second process did not observe committed change: %+v", d.Products)
	}
	if len(d.Movements["v1"]) != 1 {
		t.Errorf("movement ledger not persisted: %+v", d.Movements)
	}
}

func TestChange_MutatorErrorAppliesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	before := s.Revision()

	boom := errors.New("boom")
	err := s.Change(ctx, "failing", func(d *doc.Document) error {
		d.Products = append(d.Products, doc.Product{ID: "px"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped mutator error, got %v", err)
	}

	if got := s.Revision(); got != before {
		t.Errorf("revision advanced on failed change: %d -> %d", before, got)
	}
	if len(s.Snapshot().Products) != 0 {
		t.Error("failed mutator leaked partial state into the document")
	}
}

func TestChange_NoChangeAbandonsDraft(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	before := s.Revision()

	fired := 0
	s.Subscribe(func() { fired++ })

	err := s.Change(ctx, "abandoned", func(d *doc.Document) error {
		d.Products = append(d.Products, doc.Product{ID: "px"})
		return ErrNoChange
	})
	if err != nil {
		t.Fatalf("Change() with ErrNoChange returned %v, want nil", err)
	}

	if got := s.Revision(); got != before {
		t.Errorf("revision advanced on abandoned change: %d -> %d", before, got)
	}
	if len(s.Snapshot().Products) != 0 {
		t.Error("abandoned mutator leaked partial state into the document")
	}
	if fired != 0 {
		t.Errorf("subscriber fired %d time(s) on abandoned change", fired)
	}
}

func TestSubscribe_FiresOncePerCommit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	var fired int
	id := s.Subscribe(func() { fired++ })

	for i := 0; i < 3; i++ {
		if err := s.Change(ctx, "touch", func(d *doc.Document) error {
			d.Preferences.SearchTerm = "x"
			return nil
		}); err != nil {
			t.Fatalf("Change() failed: %v", err)
		}
	}
	if fired != 3 {
		t.Errorf("expected 3 notifications, got %d", fired)
	}

	// Failed changes never notify.
	_ = s.Change(ctx, "fail", func(*doc.Document) error { return errors.New("no") })
	if fired != 3 {
		t.Errorf("failed change notified subscribers: %d", fired)
	}

	s.Unsubscribe(id)
	if err := s.Change(ctx, "touch", func(*doc.Document) error { return nil }); err != nil {
		t.Fatalf("Change() failed: %v", err)
	}
	if fired != 3 {
		t.Errorf("unsubscribed callback still fired: %d", fired)
	}
}

func TestSubscriber_CanReadSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	var seen int
	s.Subscribe(func() {
		// Re-reading inside the callback must not deadlock and must see
		// the already-committed state.
		seen = len(s.Snapshot().Products)
	})

	if err := s.Change(ctx, "add", func(d *doc.Document) error {
		d.Products = append(d.Products, doc.Product{ID: "p1", Variants: []doc.Variant{{ID: "v1"}}})
		return nil
	}); err != nil {
		t.Fatalf("Change() failed: %v", err)
	}
	if seen != 1 {
		t.Errorf("subscriber saw %d products, want 1", seen)
	}
}

func TestPollExternal_ObservesOtherActor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kardex.db")
	ctx := context.Background()

	a, err := Open(path, "actor-a")
	if err != nil {
		t.Fatalf("Open(a) failed: %v", err)
	}
	defer a.Close()
	if err := a.Initialize(ctx); err != nil {
		t.Fatalf("Initialize(a) failed: %v", err)
	}

	b, err := Open(path, "actor-b")
	if err != nil {
		t.Fatalf("Open(b) failed: %v", err)
	}
	defer b.Close()
	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("Initialize(b) failed: %v", err)
	}

	var notified bool
	b.Subscribe(func() { notified = true })

	if err := a.Change(ctx, "add", func(d *doc.Document) error {
		d.Products = append(d.Products, doc.Product{ID: "p1", Variants: []doc.Variant{{ID: "v1"}}})
		return nil
	}); err != nil {
		t.Fatalf("Change(a) failed: %v", err)
	}

	if err := b.pollExternal(ctx); err != nil {
		t.Fatalf("pollExternal(b) failed: %v", err)
	}
	if !notified {
		t.Error("b was not notified of a's change")
	}
	if len(b.Snapshot().Products) != 1 {
		t.Error("b did not observe a's product")
	}
}

// dbPathForTest recovers the database file path for reopening in tests.
func (s *Store) dbPathForTest(t *testing.T) string {
	t.Helper()
	var path string
	if err := s.db.QueryRow("PRAGMA database_list").Scan(new(int), new(string), &path); err != nil {
		t.Fatalf("database_list failed: %v", err)
	}
	return path
}
