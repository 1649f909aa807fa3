package resync

import "github.com/roach88/docsync/internal/editlog"

// Plan is the outcome of comparing the current id sequence with the
// recorded one.
type Plan struct {
	// Divergence is the first position whose commit must be reprocessed.
	Divergence int

	// NoOp is set when nothing changed; not even the sequence is rewritten.
	NoOp bool

	// FastPath is set when only empty-log commits were removed: the sequence
	// is rewritten without rollback or replay.
	FastPath bool
}

// Diverge computes where current and recorded part ways.
//
// Shrunk: scan from the tail for the largest aligned index i; divergence
// is i+1. Same length: the first mismatch over the whole sequence. Grown:
// the recorded length. In every case the result is clamped to the first
// mismatch of the common prefix, so a change before the aligned tail is
// never missed.
//
// from >= 0 forces divergence to at most from (a directed resync of a
// commit whose id did not change); it disables NoOp and FastPath.
func Diverge(current, recorded []string, logs map[string]editlog.Log, from int) Plan {
	n, m := len(current), len(recorded)
	prefix := firstMismatch(current, recorded)

	var plan Plan
	switch {
	case n < m:
		aligned := -1
		for i := n - 1; i >= 0; i-- {
			if current[i] == recorded[i] {
				aligned = i
				break
			}
		}
		plan.Divergence = min(aligned+1, prefix)
		plan.FastPath = onlyEmptyRemoved(current, recorded, logs)
	case n == m:
		plan.Divergence = prefix
		plan.NoOp = prefix == n
	default:
		plan.Divergence = min(m, prefix)
	}

	if from >= 0 {
		plan.Divergence = max(min(plan.Divergence, from), 0)
		plan.NoOp = false
		plan.FastPath = false
	}
	return plan
}

// firstMismatch returns the first index at which the sequences differ,
// or the shorter length when one is a prefix of the other.
func firstMismatch(a, b []string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// onlyEmptyRemoved reports whether current is recorded with some ids
// removed, every removed id having an empty log.
func onlyEmptyRemoved(current, recorded []string, logs map[string]editlog.Log) bool {
	present := make(map[string]bool, len(current))
	for _, id := range current {
		present[id] = true
	}
	survivors := make([]string, 0, len(current))
	for _, id := range recorded {
		if present[id] {
			survivors = append(survivors, id)
			continue
		}
		if len(logs[id]) > 0 {
			return false
		}
	}
	if len(survivors) != len(current) {
		return false
	}
	for i := range survivors {
		if survivors[i] != current[i] {
			return false
		}
	}
	return true
}
