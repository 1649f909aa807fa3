package harness

import (
	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
)

// Trace event types.
const (
	EventSubmit     = "submit"
	EventCompletion = "completion"
)

// TraceEvent is either a submitted job or an emitted completion.
type TraceEvent struct {
	Type string `json:"type"` // "submit" or "completion"
	Seq  int64  `json:"seq"`
	Step int    `json:"step"`

	// Submit fields
	Job       string `json:"job,omitempty"`
	Admission string `json:"admission,omitempty"`

	// Completion fields
	LastID       string       `json:"last_id,omitempty"`
	LastPosition int          `json:"last_position"`
	Phases       []host.Phase `json:"phases,omitempty"`
	Positions    []string     `json:"positions,omitempty"`
	Document     ir.IRValue   `json:"document,omitempty"`
}

// FinalState is the ledger after the last step.
type FinalState struct {
	Document  ir.IRObject            `json:"document"`
	Positions []string               `json:"positions"`
	Logs      map[string]editlog.Log `json:"logs"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every submission and completion in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final ledger.
	State FinalState `json:"state"`

	completions []host.Completion
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Completions returns the completions emitted during the run.
func (r *Result) Completions() []host.Completion {
	return r.completions
}

// addSubmit records a submission and returns its trace index; the
// admission is filled in once Submit returns.
func (r *Result) addSubmit(step int, job string) int {
	r.Trace = append(r.Trace, TraceEvent{
		Type: EventSubmit,
		Seq:  int64(len(r.Trace) + 1),
		Step: step,
		Job:  job,
	})
	return len(r.Trace) - 1
}

func (r *Result) addCompletion(step int, c host.Completion) {
	r.completions = append(r.completions, c)
	r.Trace = append(r.Trace, TraceEvent{
		Type:         EventCompletion,
		Seq:          int64(len(r.Trace) + 1),
		Step:         step,
		LastID:       c.LastID,
		LastPosition: c.LastPosition,
		Phases:       c.Phases,
		Positions:    c.Positions,
		Document:     c.Stripped,
	})
}
