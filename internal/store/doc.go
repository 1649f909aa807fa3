// Package store provides SQLite-backed durable storage for docsync.
//
// One database holds any number of scopes. Per scope it keeps:
//   - the ledger: document, position sequence and one edit log per commit
//     id (implements ledger.Store)
//   - hosted commits, when docsync is its own host (Host implements
//     host.CommitStore and host.Notifier)
//   - completion notifications, oldest first by seq
//
// # Critical Patterns
//
// Atomic read-modify-write:
//   - Update loads, transforms and rewrites a scope in one transaction
//   - a transform that returns an error leaves the stored state untouched
//
// Deterministic storage:
//   - documents are stored as canonical JSON
//   - edit logs are read back ORDER BY commit_id COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one pooled connection: a transaction excludes all other statements,
//     so a ledger transform must not call back into Host
package store
