package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docsync/internal/ir"
)

// GoldenDir holds golden files, relative to the test's package.
const GoldenDir = "testdata/golden"

// Snapshot renders a run as canonical JSON: the scenario name, every trace
// event, and the final stripped document with its position sequence.
//
// Edit logs are left out; the documents and positions they produce are in
// the trace.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, e := range result.Trace {
		obj := ir.IRObject{
			"type": ir.IRString(e.Type),
			"seq":  ir.IRInt(e.Seq),
			"step": ir.IRInt(int64(e.Step)),
		}
		switch e.Type {
		case EventSubmit:
			obj["job"] = ir.IRString(e.Job)
			obj["admission"] = ir.IRString(e.Admission)
		case EventCompletion:
			obj["last_id"] = ir.IRString(e.LastID)
			obj["last_position"] = ir.IRInt(int64(e.LastPosition))
			phases := make(ir.IRArray, len(e.Phases))
			for j, p := range e.Phases {
				phases[j] = ir.IRString(p)
			}
			obj["phases"] = phases
			obj["positions"] = stringArray(e.Positions)
			if e.Document != nil {
				obj["document"] = e.Document
			} else {
				obj["document"] = ir.IRNull{}
			}
		}
		trace[i] = obj
	}

	snapshot := ir.IRObject{
		"scenario": ir.IRString(name),
		"trace":    trace,
		"state": ir.IRObject{
			"document":  ir.StripMeta(result.State.Document),
			"positions": stringArray(result.State.Positions),
		},
	}
	return ir.MarshalCanonical(snapshot)
}

func stringArray(list []string) ir.IRArray {
	out := make(ir.IRArray, len(list))
	for i, s := range list {
		out[i] = ir.IRString(s)
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
