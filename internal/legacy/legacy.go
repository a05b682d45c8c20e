// Package legacy adapts the flat key-value persistence layer used before
// the catalog moved to the replicated document. One key holds one whole
// logical collection as a JSON blob. The migration runner is the only
// consumer left; after a successful migration every legacy key is gone.
package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kardexapp/kardex/internal/doc"
)

// Flat legacy keys, one per logical collection.
const (
	KeyProducts        = "legacy:products"
	KeyPreferences     = "legacy:preferences"
	KeyIgnoredIDs      = "legacy:ignored_ids"
	KeyCategories      = "legacy:categories"
	KeyMovements       = "legacy:movements"
	KeyManualMovements = "legacy:manual_movements"
	KeyAuditLog        = "legacy:audit_log"
)

// AllKeys lists every legacy key the migration runner reads and deletes.
var AllKeys = []string{
	KeyProducts,
	KeyPreferences,
	KeyIgnoredIDs,
	KeyCategories,
	KeyMovements,
	KeyManualMovements,
	KeyAuditLog,
}

// Data is the parsed content of the legacy store. Collections missing or
// malformed in storage come back as their zero value - legacy data was
// written by several app generations and partial key sets are normal.
type Data struct {
	Products        []doc.Product
	Preferences     doc.Preferences
	HasPreferences  bool
	IgnoredIDs      []string
	Categories      []string
	Movements       map[string][]doc.Movement
	ManualMovements []doc.ManualMovement
	AuditLog        []doc.AuditEntry
}

// Adapter reads and writes the legacy_kv table.
type Adapter struct {
	db *sql.DB
}

// NewAdapter wraps an open database handle. The handle is shared with
// the replicated store; the adapter only touches legacy_kv.
func NewAdapter(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// HasProducts reports whether a legacy products key exists at all.
// Presence of the key - even with an empty array - marks a legacy
// generation that has not been migrated yet.
func (a *Adapter) HasProducts(ctx context.Context) (bool, error) {
	var count int
	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM legacy_kv WHERE key = ?
	`, KeyProducts).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("legacy: check products key: %w", err)
	}
	return count > 0, nil
}

// ReadAll parses every legacy collection defensively. A missing or
// malformed key yields the zero value for that collection and is logged;
// it never fails the read.
func (a *Adapter) ReadAll(ctx context.Context) (Data, error) {
	var d Data

	if err := a.readJSON(ctx, KeyProducts, &d.Products); err != nil {
		return d, err
	}
	prefsFound, err := a.readJSONFound(ctx, KeyPreferences, &d.Preferences)
	if err != nil {
		return d, err
	}
	d.HasPreferences = prefsFound
	if err := a.readJSON(ctx, KeyIgnoredIDs, &d.IgnoredIDs); err != nil {
		return d, err
	}
	if err := a.readJSON(ctx, KeyCategories, &d.Categories); err != nil {
		return d, err
	}
	if err := a.readJSON(ctx, KeyMovements, &d.Movements); err != nil {
		return d, err
	}
	if err := a.readJSON(ctx, KeyManualMovements, &d.ManualMovements); err != nil {
		return d, err
	}
	if err := a.readJSON(ctx, KeyAuditLog, &d.AuditLog); err != nil {
		return d, err
	}

	return d, nil
}

// Keys returns the legacy keys currently present, in key order.
func (a *Adapter) Keys(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT key FROM legacy_kv WHERE key LIKE 'legacy:%' ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("legacy: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("legacy: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("legacy: iterate keys: %w", err)
	}
	return keys, nil
}

// DeleteAll removes every legacy key in one transaction.
func (a *Adapter) DeleteAll(ctx context.Context) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("legacy: delete all: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM legacy_kv WHERE key LIKE 'legacy:%'
	`); err != nil {
		return fmt.Errorf("legacy: delete all: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("legacy: delete all: commit: %w", err)
	}
	return nil
}

// Write stores one collection under its legacy key. Used by migration
// tests and by the one remaining downgrade path.
func (a *Adapter) Write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("legacy: marshal %q: %w", key, err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO legacy_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("legacy: write %q: %w", key, err)
	}
	return nil
}

// WriteRaw stores a raw value without JSON validation. Used by tests to
// simulate the malformed blobs older generations left behind.
func (a *Adapter) WriteRaw(ctx context.Context, key, value string) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO legacy_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("legacy: write raw %q: %w", key, err)
	}
	return nil
}

// readJSON reads a key into out, treating absence and malformed JSON as
// the zero value.
func (a *Adapter) readJSON(ctx context.Context, key string, out any) error {
	_, err := a.readJSONFound(ctx, key, out)
	return err
}

// readJSONFound is readJSON but also reports whether the key held a
// usable value.
func (a *Adapter) readJSONFound(ctx context.Context, key string, out any) (bool, error) {
	var value string
	err := a.db.QueryRowContext(ctx, `
		SELECT value FROM legacy_kv WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("legacy: read %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(value), out); err != nil {
		slog.Warn("legacy key malformed, defaulting to empty", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}
