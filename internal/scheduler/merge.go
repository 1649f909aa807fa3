package scheduler

import "time"

// Pair is an ordered pair of adjacent triggers.
type Pair struct {
	First  Trigger
	Second Trigger
}

// Combination fuses an adjacent Pair into one job of trigger Result.
type Combination struct {
	Pair
	Result Trigger

	// Urgent ends the debounce window as soon as the pair is queued.
	Urgent bool
}

// Rules configures Merge.
type Rules struct {
	Combinations []Combination

	// Collisions are pairs known to be a benign race; both jobs are dropped.
	Collisions []Pair

	// Coalesce lists the groups whose consecutive jobs collapse to the last.
	Coalesce map[Group]bool

	// Interval bounds the gap between the two jobs of a combination or
	// collision. Zero or negative means unbounded.
	Interval time.Duration
}

// DefaultRules returns the rules for the host triggers.
//
// An edit followed by a generation is the host regenerating after the
// edit, so one directed resync covers both. A swipe followed by a
// generation means the swiped commit is about to be rewritten, so only the
// commits before it are replayed. An update echo paired with an edit is
// the host reflecting a write it already reported.
func DefaultRules(interval time.Duration) Rules {
	return Rules{
		Combinations: []Combination{
			{Pair: Pair{TriggerMessageEdited, TriggerGenerationStarted}, Result: TriggerEditGenerate, Urgent: true},
			{Pair: Pair{TriggerMessageSwiped, TriggerGenerationStarted}, Result: TriggerSwipeGenerate, Urgent: true},
		},
		Collisions: []Pair{
			{TriggerMessageUpdated, TriggerMessageEdited},
			{TriggerMessageEdited, TriggerMessageUpdated},
		},
		Coalesce: map[Group]bool{
			GroupInit: true,
			GroupFull: true,
		},
		Interval: interval,
	}
}

// MergeReport counts what Merge did.
type MergeReport struct {
	Combined  int
	Collided  int
	Coalesced int
	Orphaned  int
}

// Merge applies the rules to one drained batch: combinations and
// collisions over adjacent pairs, then orphan cleanup, then coalescing.
//
// Merge is pure. Survivors keep their relative order; jobs are fused or
// dropped but never reordered.
func Merge(jobs []Job, r Rules) ([]Job, MergeReport) {
	var rep MergeReport

	paired := make([]Job, 0, len(jobs))
	for i := 0; i < len(jobs); i++ {
		if i+1 < len(jobs) {
			a, b := jobs[i], jobs[i+1]
			if c, ok := r.combination(a, b); ok {
				paired = append(paired, fuse(a, b, c.Result))
				rep.Combined++
				i++
				continue
			}
			if r.collides(a, b) {
				rep.Collided++
				i++
				continue
			}
		}
		paired = append(paired, jobs[i])
	}

	kept := paired[:0]
	for _, j := range paired {
		if j.Group == GroupDetector {
			rep.Orphaned++
			continue
		}
		kept = append(kept, j)
	}

	out := make([]Job, 0, len(kept))
	for _, j := range kept {
		if n := len(out); n > 0 && r.Coalesce[j.Group] && out[n-1].Group == j.Group {
			out[n-1] = j
			rep.Coalesced++
			continue
		}
		out = append(out, j)
	}
	return out, rep
}

// Urgent reports whether jobs hold an adjacent pair of an urgent
// combination.
func (r Rules) Urgent(jobs []Job) bool {
	for i := 0; i+1 < len(jobs); i++ {
		if c, ok := r.combination(jobs[i], jobs[i+1]); ok && c.Urgent {
			return true
		}
	}
	return false
}

func (r Rules) combination(a, b Job) (Combination, bool) {
	if !r.related(a, b) {
		return Combination{}, false
	}
	for _, c := range r.Combinations {
		if c.First == a.Trigger && c.Second == b.Trigger {
			return c, true
		}
	}
	return Combination{}, false
}

func (r Rules) collides(a, b Job) bool {
	if !r.related(a, b) {
		return false
	}
	for _, p := range r.Collisions {
		if p.First == a.Trigger && p.Second == b.Trigger {
			return true
		}
	}
	return false
}

// related reports whether a and b are close enough in time and name the
// same commit. A job without a position matches any position.
func (r Rules) related(a, b Job) bool {
	if r.Interval > 0 && b.At.Sub(a.At) > r.Interval {
		return false
	}
	return a.Position < 0 || b.Position < 0 || a.Position == b.Position
}

// fuse builds the synthetic job of a combination.
func fuse(a, b Job, result Trigger) Job {
	pos := a.Position
	if pos < 0 {
		pos = b.Position
	}
	return Job{
		Trigger:  result,
		Group:    GroupOf(result),
		Position: pos,
		At:       b.At,
		Payload:  a.Payload,
	}
}
