// Package store provides SQLite-backed durable storage for the one
// replicated catalog document.
//
// The document is persisted as a single canonical JSON row; every
// committed change also appends a change_log row stamped with the
// originating actor and that actor's own change counter.
//
// # Critical Patterns
//
// CP-1: Single Mutation Gate
//   - Change is the only path that modifies the document
//   - The mutator runs against a draft clone; a mutator error applies nothing
//
// CP-2: Atomic Commit
//   - Document body and change_log row land in one SQL transaction
//   - The in-memory document swaps only after the commit succeeds
//
// CP-3: Best-Effort Cross-Process Propagation
//   - Watch polls max(change_log.seq) and reloads on external bumps
//   - Per-actor causal order is preserved; nothing else is guaranteed
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
