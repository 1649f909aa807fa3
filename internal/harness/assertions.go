package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/docsync/internal/api"
	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Diff     string       // (-want +got), when both sides are documents
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "  Diff (-want +got):\n%s", e.Diff)
	}

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case EventSubmit:
				fmt.Fprintf(&buf, "  [%d] step %d submit %s (%s)\n", event.Seq, event.Step, event.Job, event.Admission)
			case EventCompletion:
				fmt.Fprintf(&buf, "  [%d] step %d completion last=%s@%d phases=%v\n",
					event.Seq, event.Step, event.LastID, event.LastPosition, event.Phases)
			}
		}
	}
	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx context.Context
	API *api.API
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides ledger access for snapshot assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertDocument:
			err = assertDocument(result, assertion)
		case AssertPositions:
			err = assertPositions(result, assertion)
		case AssertLog:
			err = assertLog(result, assertion)
		case AssertSnapshot:
			if actx == nil || actx.API == nil {
				err = fmt.Errorf("assertion[%d]: snapshot requires ledger context", i)
			} else {
				err = assertSnapshot(actx, result, assertion)
			}
		case AssertCompletion:
			err = assertCompletion(result, assertion)
		case AssertCompletionCount:
			err = assertCompletionCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// matchDocument compares expected (as decoded from YAML) against the
// stripped doc, or the value at path inside it.
func matchDocument(kind string, doc ir.IRValue, path string, expected any, trace []TraceEvent) error {
	want, err := ir.FromAny(expected)
	if err != nil {
		return fmt.Errorf("%s: expect: %w", kind, err)
	}

	got := ir.StripMeta(doc)
	if path != "" {
		v, ok := ir.Get(got, ir.ParsePath(path))
		if !ok {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s = %s", path, ir.CanonicalString(want)),
				Actual:   fmt.Sprintf("%s is absent", path),
				Trace:    trace,
			}
		}
		got = v
	}

	if ir.Equal(want, got) {
		return nil
	}
	where := "document"
	if path != "" {
		where = path
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%s = %s", where, ir.CanonicalString(want)),
		Actual:   fmt.Sprintf("%s = %s", where, ir.CanonicalString(got)),
		Diff:     cmp.Diff(ir.ToAny(want), ir.ToAny(got)),
		Trace:    trace,
	}
}

func assertDocument(result *Result, a Assertion) error {
	return matchDocument(AssertDocument, result.State.Document, a.Path, a.Expect, result.Trace)
}

func assertPositions(result *Result, a Assertion) error {
	got := result.State.Positions
	if slices.Equal(a.IDs, got) || (len(a.IDs) == 0 && len(got) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPositions,
		Expected: fmt.Sprintf("%v", a.IDs),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

func assertLog(result *Result, a Assertion) error {
	log, ok := result.State.Logs[a.ID]
	if !ok {
		return &AssertionError{
			Type:     AssertLog,
			Expected: fmt.Sprintf("a log for %s", a.ID),
			Actual:   fmt.Sprintf("no log; logs exist for %v", logIDs(result.State.Logs)),
			Trace:    result.Trace,
		}
	}
	if a.Ops == nil {
		return nil
	}

	got := make([]string, len(log))
	for i, e := range log {
		got[i] = string(e.Op) + " " + e.Path.String()
	}
	ops := make([]string, len(log))
	for i, e := range log {
		ops[i] = string(e.Op)
	}
	// Ops may name the op alone or "op path".
	if slices.Equal(a.Ops, ops) || slices.Equal(a.Ops, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertLog,
		Expected: fmt.Sprintf("%s: %v", a.ID, a.Ops),
		Actual:   fmt.Sprintf("%s: %v", a.ID, got),
		Trace:    result.Trace,
	}
}

func logIDs(logs map[string]editlog.Log) []string {
	ids := make([]string, 0, len(logs))
	for id := range logs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func assertSnapshot(actx *AssertionContext, result *Result, a Assertion) error {
	var (
		doc ir.IRObject
		err error
	)
	if a.ID != "" {
		snap, serr := actx.API.SnapshotByID(actx.Ctx, a.ID)
		doc, err = snap.Document, serr
	} else {
		snap, serr := actx.API.SnapshotAt(actx.Ctx, *a.Position)
		doc, err = snap.Document, serr
	}
	if err != nil {
		return &AssertionError{
			Type:     AssertSnapshot,
			Expected: "a snapshot",
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}
	return matchDocument(AssertSnapshot, doc, a.Path, a.Expect, result.Trace)
}

func assertCompletion(result *Result, a Assertion) error {
	all := result.Completions()
	i := a.At
	if i < 0 {
		i += len(all)
	}
	if i < 0 || i >= len(all) {
		return &AssertionError{
			Type:     AssertCompletion,
			Expected: fmt.Sprintf("completion %d", a.At),
			Actual:   fmt.Sprintf("%d completions", len(all)),
			Trace:    result.Trace,
		}
	}
	c := all[i]

	if a.Phases != nil {
		got := make([]string, len(c.Phases))
		for j, p := range c.Phases {
			got[j] = string(p)
		}
		if !slices.Equal(a.Phases, got) {
			return &AssertionError{
				Type:     AssertCompletion,
				Expected: fmt.Sprintf("completion %d phases %v", a.At, a.Phases),
				Actual:   fmt.Sprintf("phases %v", got),
				Trace:    result.Trace,
			}
		}
	}
	if a.IDs != nil && !slices.Equal(a.IDs, c.Positions) {
		return &AssertionError{
			Type:     AssertCompletion,
			Expected: fmt.Sprintf("completion %d positions %v", a.At, a.IDs),
			Actual:   fmt.Sprintf("positions %v", c.Positions),
			Trace:    result.Trace,
		}
	}
	if a.LastID != "" && a.LastID != c.LastID {
		return &AssertionError{
			Type:     AssertCompletion,
			Expected: fmt.Sprintf("completion %d last id %s", a.At, a.LastID),
			Actual:   fmt.Sprintf("last id %s", c.LastID),
			Trace:    result.Trace,
		}
	}
	if a.Expect != nil {
		return matchDocument(AssertCompletion, completionDocument(c), a.Path, a.Expect, result.Trace)
	}
	return nil
}

func completionDocument(c host.Completion) ir.IRValue {
	if c.Stripped != nil {
		return c.Stripped
	}
	return c.Document
}

func assertCompletionCount(result *Result, a Assertion) error {
	if n := len(result.Completions()); n != a.Count {
		return &AssertionError{
			Type:     AssertCompletionCount,
			Expected: fmt.Sprintf("%d completions", a.Count),
			Actual:   fmt.Sprintf("%d completions", n),
			Trace:    result.Trace,
		}
	}
	return nil
}
