// Package view materializes render-safe snapshots from the replicated
// document. Consumers read plain deep-copied values; they never touch
// the live document and never need the store lock. Per collection the
// materializer keeps the previous copy when the content hash is
// unchanged, so an untouched collection stays reference-equal across
// snapshots and cheap change detection by comparison works.
package view

import (
	"fmt"
	"sync"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/store"
)

// Snapshot is one materialized, immutable view of the document.
// Collections whose content did not change between two snapshots share
// the same backing slice/map.
type Snapshot struct {
	Revision          int64
	Products          []doc.Product
	Preferences       doc.Preferences
	IgnoredProductIDs []string
	AllCategories     []string
	Movements         map[string][]doc.Movement
	ManualMovements   []doc.ManualMovement
	AuditLog          []doc.AuditEntry
}

// VisibleProducts filters out ignored entries, honoring the ShowIgnored
// preference.
func (s Snapshot) VisibleProducts() []doc.Product {
	if s.Preferences.ShowIgnored {
		return s.Products
	}
	ignored := make(map[string]bool, len(s.IgnoredProductIDs))
	for _, id := range s.IgnoredProductIDs {
		ignored[id] = true
	}
	var out []doc.Product
	for _, p := range s.Products {
		if !ignored[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// Materializer subscribes to a store and keeps the latest Snapshot.
type Materializer struct {
	store *store.Store
	subID int

	mu      sync.Mutex
	current Snapshot
	hashes  map[string]string

	changes chan Snapshot
}

// New builds a materializer over an initialized store and registers its
// subscription. The first snapshot is built immediately.
func New(s *store.Store) (*Materializer, error) {
	m := &Materializer{
		store:   s,
		hashes:  make(map[string]string),
		changes: make(chan Snapshot, 1),
	}
	if err := m.rebuild(); err != nil {
		return nil, err
	}
	m.subID = s.Subscribe(m.onChange)
	return m, nil
}

// Close unregisters the store subscription and closes the changes
// channel. The materializer must not be used afterwards.
func (m *Materializer) Close() {
	m.store.Unsubscribe(m.subID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.changes != nil {
		close(m.changes)
		m.changes = nil
	}
}

// Current returns the latest snapshot.
func (m *Materializer) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Changes delivers snapshots after each committed change. The channel
// coalesces: a slow reader sees only the latest snapshot, never a
// backlog.
func (m *Materializer) Changes() <-chan Snapshot {
	return m.changes
}

func (m *Materializer) onChange() {
	// Rebuild failures cannot happen after Initialize (marshal of plain
	// structs); keep the previous snapshot if one ever does.
	_ = m.rebuild()
}

// rebuild copies the live document into a fresh Snapshot, reusing the
// previous collection value wherever the content hash is unchanged.
func (m *Materializer) rebuild() error {
	d := m.store.Snapshot()
	if d == nil {
		return fmt.Errorf("view: store not initialized")
	}
	rev := m.store.Revision()

	m.mu.Lock()
	defer m.mu.Unlock()

	next := Snapshot{Revision: rev, Preferences: d.Preferences}
	hashes := make(map[string]string, 7)

	h, err := hashInto(hashes, doc.DomainProducts, d.Products)
	if err != nil {
		return err
	}
	if h == m.hashes[doc.DomainProducts] {
		next.Products = m.current.Products
	} else {
		next.Products = d.Clone().Products
	}

	h, err = hashInto(hashes, doc.DomainIgnoredIDs, d.IgnoredProductIDs)
	if err != nil {
		return err
	}
	if h == m.hashes[doc.DomainIgnoredIDs] {
		next.IgnoredProductIDs = m.current.IgnoredProductIDs
	} else {
		next.IgnoredProductIDs = append([]string(nil), d.IgnoredProductIDs...)
	}

	h, err = hashInto(hashes, doc.DomainCategories, d.AllCategories)
	if err != nil {
		return err
	}
	if h == m.hashes[doc.DomainCategories] {
		next.AllCategories = m.current.AllCategories
	} else {
		next.AllCategories = append([]string(nil), d.AllCategories...)
	}

	h, err = hashInto(hashes, doc.DomainMovements, d.Movements)
	if err != nil {
		return err
	}
	if h == m.hashes[doc.DomainMovements] {
		next.Movements = m.current.Movements
	} else {
		movs := make(map[string][]doc.Movement, len(d.Movements))
		for k, ms := range d.Movements {
			movs[k] = doc.CloneLedger(ms)
		}
		next.Movements = movs
	}

	h, err = hashInto(hashes, doc.DomainManualMovements, d.ManualMovements)
	if err != nil {
		return err
	}
	if h == m.hashes[doc.DomainManualMovements] {
		next.ManualMovements = m.current.ManualMovements
	} else {
		next.ManualMovements = append([]doc.ManualMovement(nil), d.ManualMovements...)
	}

	h, err = hashInto(hashes, doc.DomainAuditLog, d.AuditLog)
	if err != nil {
		return err
	}
	if h == m.hashes[doc.DomainAuditLog] {
		next.AuditLog = m.current.AuditLog
	} else {
		next.AuditLog = append([]doc.AuditEntry(nil), d.AuditLog...)
	}

	m.current = next
	m.hashes = hashes
	m.publishLocked(next)
	return nil
}

// publishLocked pushes the snapshot with latest-wins coalescing.
func (m *Materializer) publishLocked(s Snapshot) {
	if m.changes == nil {
		return
	}
	for {
		select {
		case m.changes <- s:
			return
		default:
			select {
			case <-m.changes:
			default:
			}
		}
	}
}

// hashInto records the collection hash under its domain and returns it.
func hashInto(dst map[string]string, domain string, v any) (string, error) {
	h, err := doc.CollectionHash(domain, v)
	if err != nil {
		return "", fmt.Errorf("view: hash %s: %w", domain, err)
	}
	dst[domain] = h
	return h, nil
}
