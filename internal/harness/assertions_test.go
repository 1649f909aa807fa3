package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
)

func intPtr(i int) *int { return &i }

// sampleResult is a run that inserted stats.hp, updated it in a second
// commit, then rolled the second commit back.
func sampleResult() *Result {
	r := NewResult()
	r.addSubmit(0, "chat_changed/init")
	r.addCompletion(0, host.Completion{
		LastID:    "b0",
		Phases:    []host.Phase{host.PhaseResync, host.PhaseApply},
		Positions: []string{"b0"},
		Stripped:  ir.IRObject{"stats": ir.IRObject{"hp": ir.IRInt(10)}},
	})
	r.addSubmit(1, "message_deleted/full@1")
	r.addCompletion(1, host.Completion{
		LastID:    "b0",
		Phases:    []host.Phase{host.PhaseResync, host.PhaseRollback},
		Positions: []string{"b0"},
		Document: ir.IRObject{
			"$meta": ir.IRObject{"necessary": ir.IRString("all")},
			"stats": ir.IRObject{"hp": ir.IRInt(10)},
		},
	})
	r.State = FinalState{
		Document:  ir.IRObject{"stats": ir.IRObject{"hp": ir.IRInt(10)}},
		Positions: []string{"b0"},
		Logs: map[string]editlog.Log{
			"b0": {{Op: editlog.OpInsert, Path: ir.ParsePath("stats"), New: ir.IRObject{"hp": ir.IRInt(10)}}},
		},
	}
	return r
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertDocument, Expect: map[string]any{"stats": map[string]any{"hp": 10}}},
		{Type: AssertDocument, Path: "stats.hp", Expect: 10},
		{Type: AssertPositions, IDs: []string{"b0"}},
		{Type: AssertLog, ID: "b0", Ops: []string{"insert"}},
		{Type: AssertLog, ID: "b0", Ops: []string{"insert stats"}},
		{Type: AssertLog, ID: "b0"},
		{Type: AssertCompletionCount, Count: 2},
		{Type: AssertCompletion, At: 0, Phases: []string{"resync", "apply"}, IDs: []string{"b0"}},
		{Type: AssertCompletion, At: -1, Phases: []string{"resync", "rollback"}, LastID: "b0"},
		{Type: AssertCompletion, At: 1, Path: "stats.hp", Expect: 10},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_DocumentMismatch(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertDocument, Expect: map[string]any{"stats": map[string]any{"hp": 7}}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: document")
	assert.Contains(t, errs[0], `Expected: document = {"stats":{"hp":7}}`)
	assert.Contains(t, errs[0], `Actual: document = {"stats":{"hp":10}}`)
	assert.Contains(t, errs[0], "Diff (-want +got)")
	assert.Contains(t, errs[0], "Full trace:")
}

func TestEvaluateAssertions_DocumentPathAbsent(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertDocument, Path: "stats.mp", Expect: 3},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "stats.mp is absent")
}

func TestEvaluateAssertions_Positions(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertPositions, IDs: []string{"b0", "b1"}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: [b0 b1]")
	assert.Contains(t, errs[0], "Actual: [b0]")
}

func TestEvaluateAssertions_EmptyPositions(t *testing.T) {
	r := NewResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertPositions, IDs: []string{}},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_LogMissing(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertLog, ID: "b9", Ops: []string{"insert"}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "logs exist for [b0]")
}

func TestEvaluateAssertions_LogOpsMismatch(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertLog, ID: "b0", Ops: []string{"update stats"}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Actual: b0: [insert stats]")
}

func TestEvaluateAssertions_CompletionOutOfRange(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertCompletion, At: 2},
		{Type: AssertCompletion, At: -3},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "2 completions")
}

func TestEvaluateAssertions_CompletionPhases(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertCompletion, At: 0, Phases: []string{"resync"}},
		{Type: AssertCompletion, At: 0, LastID: "b1"},
		{Type: AssertCompletion, At: 0, IDs: []string{}},
	}, nil)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "phases [resync apply]")
	assert.Contains(t, errs[1], "last id b0")
	assert.Contains(t, errs[2], "positions [b0]")
}

func TestEvaluateAssertions_CompletionFallsBackToDocument(t *testing.T) {
	// The second completion carries only the raw document; its $meta
	// control key is stripped before comparing.
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertCompletion, At: 1, Expect: map[string]any{"stats": map[string]any{"hp": 10}}},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_CompletionCount(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertCompletionCount, Count: 0},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: 0 completions")
}

func TestEvaluateAssertions_SnapshotNeedsContext(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertSnapshot, ID: "b0", Expect: map[string]any{}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "snapshot requires ledger context")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "eventually"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "eventually"`)
}

func TestAssertionError_TraceFormat(t *testing.T) {
	r := sampleResult()
	r.Trace[0].Admission = "started"
	err := &AssertionError{
		Type:     AssertPositions,
		Expected: "[b1]",
		Actual:   "[b0]",
		Trace:    r.Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "[1] step 0 submit chat_changed/init (started)")
	assert.Contains(t, msg, "[2] step 0 completion last=b0@0 phases=[resync apply]")
	assert.NotContains(t, msg, "Diff")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

func TestResult_TraceSequence(t *testing.T) {
	r := sampleResult()
	require.Len(t, r.Trace, 4)
	for i, e := range r.Trace {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, EventSubmit, r.Trace[2].Type)
	assert.Equal(t, 1, r.Trace[2].Step)
	assert.Len(t, r.Completions(), 2)
}
