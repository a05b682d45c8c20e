package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kardexapp/kardex/internal/doc"
)

// ErrNotInitialized is returned by Change and Snapshot-dependent calls
// before Initialize has resolved.
var ErrNotInitialized = errors.New("store: document not initialized")

// ErrNoChange can be returned by a Change mutator to abandon the draft:
// nothing is persisted, no revision is taken and no subscriber fires.
// Change itself returns nil.
var ErrNoChange = errors.New("store: no change")

// storeState is the in-memory side of the store: the live document, the
// revision bookkeeping, and the subscriber registry. All fields are
// guarded by mu; Change holds mu for the full commit so one document-wide
// write is in flight at a time.
type storeState struct {
	mu sync.Mutex

	initDone bool
	initErr  error
	initWait chan struct{} // non-nil while an initialization is in flight

	doc      *doc.Document
	revision int64
	lastSeq  int64 // highest change_log seq this process has observed
	actorSeq int64 // this actor's own change counter

	subscribers map[int]func()
	nextSubID   int
}

// Initialize locates or creates the single catalog document. Idempotent;
// concurrent callers share one in-flight initialization and all observe
// the same outcome - two callers can never each create a separate
// document.
func (s *Store) Initialize(ctx context.Context) error {
	s.state.mu.Lock()
	if s.state.initDone {
		err := s.state.initErr
		s.state.mu.Unlock()
		return err
	}
	if s.state.initWait != nil {
		// Another caller is initializing; wait for its outcome.
		wait := s.state.initWait
		s.state.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.state.mu.Lock()
		err := s.state.initErr
		s.state.mu.Unlock()
		return err
	}
	wait := make(chan struct{})
	s.state.initWait = wait
	s.state.mu.Unlock()

	err := s.initialize(ctx)

	s.state.mu.Lock()
	s.state.initDone = true
	s.state.initErr = err
	s.state.initWait = nil
	s.state.mu.Unlock()
	close(wait)
	return err
}

// initialize performs the actual get-or-create. The seed insert uses
// ON CONFLICT DO NOTHING followed by a re-read so that two processes
// racing on a fresh database converge on one document row.
func (s *Store) initialize(ctx context.Context) error {
	d, revision, err := s.readDocumentRow(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("initialize: %w", err)
	}

	if errors.Is(err, sql.ErrNoRows) || d == nil {
		seeded := doc.NewDocument()
		body, merr := doc.MarshalCanonical(seeded)
		if merr != nil {
			return fmt.Errorf("initialize: marshal seed: %w", merr)
		}

		now := time.Now().UnixMilli()
		tx, terr := s.db.BeginTx(ctx, nil)
		if terr != nil {
			return fmt.Errorf("initialize: begin tx: %w", terr)
		}
		defer tx.Rollback() // No-op if committed

		res, ierr := tx.ExecContext(ctx, `
			INSERT INTO document (doc_id, body, revision, actor, updated_at_ms)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(doc_id) DO NOTHING
		`, doc.DocumentID, string(body), s.actor, now)
		if ierr != nil {
			return fmt.Errorf("initialize: insert document: %w", ierr)
		}

		inserted, aerr := res.RowsAffected()
		if aerr != nil {
			return fmt.Errorf("initialize: rows affected: %w", aerr)
		}
		if inserted > 0 {
			if _, cerr := tx.ExecContext(ctx, `
				INSERT INTO change_log (doc_id, actor, actor_seq, summary, applied_at_ms)
				VALUES (?, ?, 1, 'initialize', ?)
			`, doc.DocumentID, s.actor, now); cerr != nil {
				return fmt.Errorf("initialize: insert change: %w", cerr)
			}
		}
		if cerr := tx.Commit(); cerr != nil {
			return fmt.Errorf("initialize: commit: %w", cerr)
		}

		// Re-read: another process may have won the insert race.
		d, revision, err = s.readDocumentRow(ctx)
		if err != nil {
			return fmt.Errorf("initialize: reread: %w", err)
		}
	}

	lastSeq, err := s.maxChangeSeq(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	actorSeq, err := s.maxActorSeq(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.state.mu.Lock()
	s.state.doc = d
	s.state.revision = revision
	s.state.lastSeq = lastSeq
	s.state.actorSeq = actorSeq
	s.state.mu.Unlock()

	slog.Debug("document initialized",
		"revision", revision,
		"last_seq", lastSeq,
		"products", len(d.Products))
	return nil
}

// Change applies a mutation to the document as one atomic change-block.
//
// The mutator receives a draft clone; if it returns an error (or the
// persistence write fails) nothing is applied and no subscriber fires.
// Returning ErrNoChange abandons the draft without reporting an error.
// On success the body and one change_log row are committed in a single
// SQL transaction, the in-memory document is swapped, and every
// subscriber is notified exactly once (no payload - observers re-read).
//
// This is the only path by which the document is modified.
func (s *Store) Change(ctx context.Context, summary string, fn func(*doc.Document) error) error {
	subs, err := s.commitChange(ctx, summary, fn)
	if err != nil {
		return err
	}
	// Notification happens outside the lock so subscribers can re-read
	// the store (Snapshot, Revision) without deadlocking.
	for _, sub := range subs {
		sub()
	}
	return nil
}

// commitChange runs the mutator and persists the result under the state
// lock, returning the subscriber callbacks to fire.
func (s *Store) commitChange(ctx context.Context, summary string, fn func(*doc.Document) error) ([]func(), error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if !s.state.initDone || s.state.doc == nil {
		return nil, ErrNotInitialized
	}

	draft := s.state.doc.Clone()
	if err := fn(draft); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil, nil
		}
		return nil, fmt.Errorf("change %q: %w", summary, err)
	}

	body, err := doc.MarshalCanonical(draft)
	if err != nil {
		return nil, fmt.Errorf("change %q: marshal: %w", summary, err)
	}

	now := time.Now().UnixMilli()
	newRevision := s.state.revision + 1
	newActorSeq := s.state.actorSeq + 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("change %q: begin tx: %w", summary, err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		UPDATE document SET body = ?, revision = ?, actor = ?, updated_at_ms = ?
		WHERE doc_id = ?
	`, string(body), newRevision, s.actor, now, doc.DocumentID); err != nil {
		return nil, fmt.Errorf("change %q: write document: %w", summary, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO change_log (doc_id, actor, actor_seq, summary, applied_at_ms)
		VALUES (?, ?, ?, ?, ?)
	`, doc.DocumentID, s.actor, newActorSeq, summary, now)
	if err != nil {
		return nil, fmt.Errorf("change %q: write change log: %w", summary, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("change %q: last insert id: %w", summary, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("change %q: commit: %w", summary, err)
	}

	s.state.doc = draft
	s.state.revision = newRevision
	s.state.actorSeq = newActorSeq
	s.state.lastSeq = seq

	slog.Debug("change committed", "summary", summary, "revision", newRevision, "seq", seq)
	return s.subscribersLocked(), nil
}

// Snapshot returns the live document. Never nil after Initialize
// resolves successfully. The returned document must be treated as
// read-only; mutations happen only through Change, and render-side
// consumers go through the materializer's copies.
func (s *Store) Snapshot() *doc.Document {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.doc
}

// Revision returns the current document revision.
func (s *Store) Revision() int64 {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.revision
}

// Subscribe registers a callback fired once per committed change, with
// no payload. Returns an id for Unsubscribe.
func (s *Store) Subscribe(fn func()) int {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.nextSubID++
	id := s.state.nextSubID
	s.state.subscribers[id] = fn
	return id
}

// Unsubscribe removes a previously registered callback.
func (s *Store) Unsubscribe(id int) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	delete(s.state.subscribers, id)
}

// subscribersLocked returns the current callbacks. Callers hold state.mu.
func (s *Store) subscribersLocked() []func() {
	subs := make([]func(), 0, len(s.state.subscribers))
	for _, fn := range s.state.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

// readDocumentRow loads and unmarshals the document row.
// Returns sql.ErrNoRows (wrapped) if the row is absent or empty.
func (s *Store) readDocumentRow(ctx context.Context) (*doc.Document, int64, error) {
	var body string
	var revision int64
	err := s.db.QueryRowContext(ctx, `
		SELECT body, revision FROM document WHERE doc_id = ?
	`, doc.DocumentID).Scan(&body, &revision)
	if err != nil {
		return nil, 0, fmt.Errorf("read document: %w", err)
	}
	if body == "" || body == "{}" {
		return nil, 0, fmt.Errorf("read document: empty body: %w", sql.ErrNoRows)
	}

	var d doc.Document
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, 0, fmt.Errorf("read document: unmarshal: %w", err)
	}
	if d.Movements == nil {
		d.Movements = map[string][]doc.Movement{}
	}
	return &d, revision, nil
}

// maxChangeSeq returns the highest change_log seq, 0 if empty.
func (s *Store) maxChangeSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM change_log WHERE doc_id = ?
	`, doc.DocumentID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max change seq: %w", err)
	}
	return seq, nil
}

// maxActorSeq returns this actor's highest actor_seq, 0 if none.
func (s *Store) maxActorSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(actor_seq), 0) FROM change_log
		WHERE doc_id = ? AND actor = ?
	`, doc.DocumentID, s.actor).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max actor seq: %w", err)
	}
	return seq, nil
}
