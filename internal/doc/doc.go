// Package doc defines the replicated catalog document and its record types.
//
// This package contains the document schema, deep-copy support, canonical
// JSON serialization, and content hashing. All other internal packages
// import doc; doc imports nothing internal. This keeps the document model
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - The document is a singleton: one per catalog database.
//   - Stock is derived state: a variant's Stock must always equal the
//     replay of that variant's movement ledger sorted by timestamp.
//   - The audit log is newest-first (entries are prepended).
//   - All JSON tags use snake_case.
package doc
