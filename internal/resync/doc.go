// Package resync keeps the ledger consistent with a commit list that can
// be edited, reordered, or truncated behind the engine's back.
//
// A resync compares the ids now occupying each position with the recorded
// position sequence, rolls back every stale commit from the divergence
// point newest first, and replays the current commits forward from there:
//
//	recorded  m0 m1 m2        current  m0 m2
//	divergence = 1
//	rollback  m2, m1          replay   m2
//
// When only commits with empty logs disappeared, the sequence is rewritten
// with no rollback or replay at all.
package resync
