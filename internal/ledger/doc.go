// Package ledger holds the persisted reconciliation state: the document,
// the per-commit edit logs, and the position sequence, behind an atomic
// read-modify-write Store.
package ledger
