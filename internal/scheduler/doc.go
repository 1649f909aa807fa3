// Package scheduler turns a stream of unordered, bursty host triggers into
// one serialized reconciliation pipeline.
//
// Lifecycle:
//
//	Idle -> Collecting -> Processing -> Idle
//	                          |
//	                          +-> (Waiting caller) -> Collecting
//
// The first Submit opens a debounce window (Collecting). The window lasts
// the longest per-trigger debounce of anything queued, polled at a fixed
// interval and capped at MaxWait; it closes early when an urgent
// combination is queued. The caller then drains the queue, applies Merge
// once and runs the jobs strictly in order (Processing).
//
// While a batch runs, exactly one further caller is kept as the Waiting
// caller; any others return Dropped at once, their jobs already sitting in
// the queue the waiter will drain.
//
// Merge rules (see Merge):
//   - Combination: an adjacent registered pair fuses into one job
//   - Collision: an adjacent registered pair cancels out
//   - Orphan cleanup: detector-only jobs left unpaired are dropped
//   - Coalescing: neighbours in a coalescing group keep only the last
//
// Each job is routed by Group to a full, directed or targeted resync, a
// direct patch, or an identity claim. Errors and panics inside a job are
// logged and counted; they never reach the caller.
package scheduler
