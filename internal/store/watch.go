package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultWatchInterval is the polling cadence for cross-process change
// detection. Propagation is best-effort; there is no delivery latency
// guarantee.
const DefaultWatchInterval = 750 * time.Millisecond

// Watch polls the change log for changes committed by other processes
// against the same database file and, when one is seen, reloads the
// document and notifies subscribers. Blocks until ctx is cancelled.
//
// Ordering: each actor's own sequence of changes is preserved (changes
// land in the log in commit order); no cross-actor ordering beyond that
// is guaranteed or assumed.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.pollExternal(ctx); err != nil {
				// Transient read errors are diagnostic only; the next
				// tick retries.
				slog.Warn("watch poll failed", "error", err)
			}
		}
	}
}

// pollExternal reloads the document if the change log advanced past what
// this process has observed.
func (s *Store) pollExternal(ctx context.Context) error {
	seq, err := s.maxChangeSeq(ctx)
	if err != nil {
		return err
	}

	s.state.mu.Lock()
	if !s.state.initDone || seq <= s.state.lastSeq {
		s.state.mu.Unlock()
		return nil
	}
	s.state.mu.Unlock()

	d, revision, err := s.readDocumentRow(ctx)
	if err != nil {
		return err
	}

	s.state.mu.Lock()
	if seq <= s.state.lastSeq {
		// A local change overtook the poll; its state is newer.
		s.state.mu.Unlock()
		return nil
	}
	s.state.doc = d
	s.state.revision = revision
	s.state.lastSeq = seq
	subs := s.subscribersLocked()
	s.state.mu.Unlock()

	slog.Debug("external change observed", "revision", revision, "seq", seq)
	for _, sub := range subs {
		sub()
	}
	return nil
}
