package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/snapshot"
	"github.com/roach88/docsync/internal/store"
)

func bufferedCommand() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	return cmd, buf
}

func rollbackCompletion() host.Completion {
	return host.Completion{
		LastID:       "b2",
		LastPosition: 1,
		Phases:       []host.Phase{host.PhaseResync, host.PhaseRollback, host.PhaseApply},
		Positions:    []string{"b0", "b2"},
		Stripped:     ir.IRObject{"hp": ir.IRInt(10), "bag": ir.IRArray{ir.IRString("rope")}},
	}
}

func TestOutputJob_Text(t *testing.T) {
	cmd, buf := bufferedCommand()

	err := outputJob(&RootOptions{Format: "text"}, cmd, 1, []host.Completion{rollbackCompletion()})
	require.NoError(t, err)

	want := "✓ position 1 id b2\n" +
		"  phases: resync, rollback, apply\n" +
		"  last:   b2@1\n" +
		"{\n  \"bag\": [\n    \"rope\"\n  ],\n  \"hp\": 10\n}\n"
	assert.Equal(t, want, buf.String())
}

func TestOutputJob_JSON(t *testing.T) {
	cmd, buf := bufferedCommand()

	err := outputJob(&RootOptions{Format: "json"}, cmd, 1, []host.Completion{rollbackCompletion()})
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "b2", resp.Data["id"])
	assert.Equal(t, []any{"resync", "rollback", "apply"}, resp.Data["phases"])
	assert.Equal(t, []any{"b0", "b2"}, resp.Data["positions"])
	assert.Equal(t, map[string]any{"hp": float64(10), "bag": []any{"rope"}}, resp.Data["document"])
}

func TestOutputJob_PositionPastSequence(t *testing.T) {
	cmd, buf := bufferedCommand()
	c := rollbackCompletion()
	c.Stripped = nil

	require.NoError(t, outputJob(&RootOptions{Format: "text"}, cmd, 5, []host.Completion{c}))
	assert.Equal(t, "✓ position 5\n  phases: resync, rollback, apply\n  last:   b2@1\n", buf.String())
}

func TestOutputJob_NoCompletion(t *testing.T) {
	cmd, buf := bufferedCommand()

	err := outputJob(&RootOptions{Format: "text"}, cmd, 0, nil)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, buf.String())
}

func TestPhaseList(t *testing.T) {
	assert.Equal(t, "-", phaseList(nil))
	assert.Equal(t, "direct-mutation", phaseList([]host.Phase{host.PhaseDirectMutation}))
}

func TestTraceResult_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	err := f.Success(TraceResult{
		Scope: "chat",
		Completions: []store.Completion{{
			Seq:       3,
			Scope:     "chat",
			LastID:    "b0",
			Phases:    []host.Phase{host.PhaseResync},
			Positions: []string{"b0"},
			Stripped:  ir.IRObject{"day": ir.IRInt(2)},
		}},
	})
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Scope       string           `json:"scope"`
			Completions []map[string]any `json:"completions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "chat", resp.Data.Scope)
	require.Len(t, resp.Data.Completions, 1)
	assert.Equal(t, float64(3), resp.Data.Completions[0]["seq"])
	assert.Equal(t, []any{"resync"}, resp.Data.Completions[0]["phases"])
	assert.Equal(t, map[string]any{"day": float64(2)}, resp.Data.Completions[0]["stripped"])
}

func TestOutputFormatter_ExportMismatch(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		verbose bool
		want    []string
	}{
		{"text", "text", false, []string{"Error [E_EXPORT_MISMATCH]: export of b1 does not reproduce its snapshot"}},
		{"text_verbose", "text", true, []string{"Error [E_EXPORT_MISMATCH]", "Details: map[id:b1 path:hp]"}},
		{"json", "json", false, []string{`"status": "error"`, `"code": "E_EXPORT_MISMATCH"`, `"id": "b1"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: buf, Verbose: tt.verbose}

			err := f.Error("E_EXPORT_MISMATCH", "export of b1 does not reproduce its snapshot",
				map[string]string{"id": "b1", "path": "hp"})
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			if !tt.verbose {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestSnapshotError(t *testing.T) {
	err := snapshotError(fmt.Errorf("state at b9: %w", snapshot.ErrUnknownID))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, snapshot.ErrUnknownID)

	assert.Equal(t, ExitFailure, GetExitCode(snapshotError(fmt.Errorf("replay failed"))))

	passed := NewExitError(ExitCommandError, "--id and --position are exclusive")
	assert.Same(t, passed, snapshotError(passed))
}

func TestPrettyJSON_CanonicalOrder(t *testing.T) {
	text, err := prettyJSON(ir.IRObject{
		"zone":  ir.IRString("<cave>"),
		"alpha": ir.IRObject{"b": ir.IRInt(2), "a": ir.IRInt(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"alpha\": {\n    \"a\": 1,\n    \"b\": 2\n  },\n  \"zone\": \"<cave>\"\n}", text)
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	f.VerboseLog("opened %s", "docsync.db")
	assert.Empty(t, out.String())
	assert.Contains(t, diag.String(), "opened docsync.db")

	quiet := &OutputFormatter{Format: "text", Writer: out}
	quiet.VerboseLog("opened %s", "docsync.db")
	assert.Empty(t, out.String())
}

func TestColorDiff(t *testing.T) {
	diff := "  {\n- \"hp\": 10\n+ \"hp\": 7\n  }\n"
	// Colour is disabled in tests, so rows pass through unchanged.
	assert.Equal(t, diff, colorDiff(diff))
}
