package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../../testdata/scenarios"

// fastConfig closes every debounce window and throttle immediately, so a
// command's job runs as soon as it is submitted.
const fastConfig = `
scope: cli-test
scheduler:
  debounce: 0s
  trigger_debounce:
    message_edited: 0s
    message_swiped: 0s
  poll_interval: 1ms
  throttle: 0s
`

type testEnv struct {
	t      *testing.T
	db     string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "docsync.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(fastConfig), 0644))
	return &testEnv{t: t, db: filepath.Join(dir, "docsync.db"), config: cfg}
}

// exec runs the CLI with the env's database and config.
func (e *testEnv) exec(args ...string) (string, error) {
	e.t.Helper()
	return execute(e.t, append([]string{"--db", e.db, "--config", e.config}, args...)...)
}

// execJSON runs the CLI with --format json and decodes the data payload.
func (e *testEnv) execJSON(args ...string) map[string]any {
	e.t.Helper()
	out, err := e.exec(append([]string{"--format", "json"}, args...)...)
	require.NoError(e.t, err, "output: %s", out)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(e.t, "ok", resp.Status)
	return resp.Data
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func strs(t *testing.T, v any) []string {
	t.Helper()
	list, ok := v.([]any)
	require.True(t, ok, "not a list: %v", v)
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.(string)
	}
	return out
}

func TestCommitLifecycle(t *testing.T) {
	env := newTestEnv(t)

	first := env.execJSON("commit", "add", "<insert>\nstats:\n  hp: 10\n</insert>")
	assert.Equal(t, []string{"resync", "apply"}, strs(t, first["phases"]))
	require.Len(t, first["positions"], 1)
	assert.Equal(t, map[string]any{"stats": map[string]any{"hp": float64(10)}}, first["document"])
	id0 := first["id"].(string)
	require.NotEmpty(t, id0)

	user := env.execJSON("commit", "add", "--role", "user", "drink the potion")
	assert.Len(t, user["positions"], 2)

	third := env.execJSON("commit", "add", "<update>\nstats:\n  hp: 7\n</update>")
	assert.Equal(t, []string{"resync", "apply"}, strs(t, third["phases"]))
	assert.Equal(t, map[string]any{"stats": map[string]any{"hp": float64(7)}}, third["document"])
	id2 := third["id"].(string)

	snap := env.execJSON("snapshot", "--position", "0")
	assert.Equal(t, id0, snap["id"])
	assert.Equal(t, map[string]any{"stats": map[string]any{"hp": float64(10)}}, snap["document"])

	byID := env.execJSON("snapshot", "--id", id2)
	assert.Equal(t, float64(2), byID["position"])

	exported := env.execJSON("export", id2, "--verify")
	patch, err := json.Marshal(exported["patch"])
	require.NoError(t, err)
	assert.Contains(t, string(patch), `"replace"`)

	diff, err := env.exec("diff", "--positions", "0", "2")
	require.NoError(t, err)
	assert.Contains(t, diff, "- ")
	assert.Contains(t, diff, "+ ")
	assert.Contains(t, diff, "7")

	list, err := env.exec("commit", "list")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(list, "\n"))
	assert.Contains(t, list, "drink the potion")

	deleted := env.execJSON("commit", "delete", "2")
	assert.Equal(t, []string{"resync", "rollback"}, strs(t, deleted["phases"]))
	assert.Equal(t, map[string]any{"stats": map[string]any{"hp": float64(10)}}, deleted["document"])

	trace := env.execJSON("trace")
	assert.Equal(t, "cli-test", trace["scope"])
	assert.Len(t, trace["completions"], 4)
}

func TestCommitAdd_FromStdin(t *testing.T) {
	env := newTestEnv(t)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("<insert>\nbag: [rope]\n</insert>"))
	cmd.SetArgs([]string{"--db", env.db, "--config", env.config, "commit", "add", "--file", "-"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "position 0")
	assert.Contains(t, out.String(), "resync, apply")
	assert.Contains(t, out.String(), `"rope"`)
}

func TestCommitAdd_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec("commit", "add", "--role", "narrator", "hi")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = env.exec("commit", "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content is required")

	_, err = env.exec("commit", "add", "--file", "x.txt", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestCommitDelete_UnknownPosition(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec("commit", "delete", "3")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = env.exec("commit", "delete", "last")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid position")
}

func TestCommitSwipe(t *testing.T) {
	env := newTestEnv(t)

	env.execJSON("commit", "add", "<insert>\na: 1\n</insert>")
	swiped := env.execJSON("commit", "swipe", "0", "<insert>\nb: 2\n</insert>")
	assert.Equal(t, map[string]any{"b": float64(2)}, swiped["document"])
}

func TestResync(t *testing.T) {
	env := newTestEnv(t)

	env.execJSON("commit", "add", "<insert>\na: 1\n</insert>")

	// Nothing changed: the fast path reports only the comparison.
	full := env.execJSON("resync")
	assert.Equal(t, []string{"resync"}, strs(t, full["phases"]))

	directed := env.execJSON("resync", "--from", "0")
	assert.Equal(t, []string{"resync", "rollback", "apply"}, strs(t, directed["phases"]))
	assert.Equal(t, map[string]any{"a": float64(1)}, directed["document"])

	targeted := env.execJSON("resync", "--from", "0", "--targeted")
	assert.Equal(t, map[string]any{}, targeted["document"])

	_, err := env.exec("resync", "--targeted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--targeted needs --from")
}

func TestSnapshot_UnknownID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec("snapshot", "--id", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSnapshot_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.exec("snapshot")
	require.NoError(t, err)
	assert.Equal(t, "{}\n", out)
}

func TestDiff_NoChanges(t *testing.T) {
	env := newTestEnv(t)

	env.execJSON("commit", "add", "<insert>\na: 1\n</insert>")
	env.execJSON("commit", "add", "--role", "user", "hi")

	out, err := env.exec("diff", "--positions", "0", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "no changes")
}

func TestExport_UnknownID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec("export", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown commit id "missing"`)
}

func TestMissingDatabase(t *testing.T) {
	_, err := execute(t, "commit", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database")
}

func TestMetricsFlag(t *testing.T) {
	env := newTestEnv(t)

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--db", env.db, "--config", env.config, "--metrics",
		"commit", "add", "<insert>\na: 1\n</insert>"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errOut.String(), `docsync_scheduler_jobs_processed_total{group="full"} 1`)
}

func TestConfigCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := execute(t, "--config", env.config, "--scope", "override", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "scope: override")
	assert.Contains(t, out, "debounce: 0s")

	data := env.execJSON("config")
	assert.Equal(t, "cli-test", data["scope"])
	assert.Equal(t, env.db, data["db"])
}

func TestConfigCommand_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsync.toml")
	require.NoError(t, os.WriteFile(path, []byte("scope = 1"), 0644))

	_, err := execute(t, "--config", path, "config")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunScenarios(t *testing.T) {
	out, err := execute(t, "run", scenarioDir)
	require.NoError(t, err, "output: %s", out)
	assert.Contains(t, out, "delete_middle")
	assert.Contains(t, out, "All scenarios passed")
}

func TestRunScenarios_Filter(t *testing.T) {
	out, err := execute(t, "--format", "json", "run", scenarioDir, "--filter", "delete_*")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Total  int `json:"total"`
			Passed int `json:"passed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
}

func TestRunScenarios_Database(t *testing.T) {
	db := filepath.Join(t.TempDir(), "docsync.db")
	out, err := execute(t, "--db", db, "run", filepath.Join(scenarioDir, "delete_middle.yaml"))
	require.NoError(t, err, "output: %s", out)

	list, err := execute(t, "--db", db, "--scope", "delete_middle", "commit", "list")
	require.NoError(t, err)
	assert.Equal(t, "No commits.\n", list, "scenario commits live in the in-memory host")

	snap, err := execute(t, "--db", db, "--scope", "delete_middle", "snapshot")
	require.NoError(t, err)
	assert.Contains(t, snap, `"b": 2`)
}

func TestRunScenarios_Failure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
name: bad
description: "Expects the wrong document"
commits:
  - {role: assistant, id: b0, content: "<insert>\na: 1\n</insert>"}
steps: [{trigger: chat_changed}]
assertions:
  - {type: document, expect: {a: 2}}
`), 0644))

	out, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ bad")
	assert.Contains(t, out, "1 failed")
}

func TestRunScenarios_MissingPath(t *testing.T) {
	_, err := execute(t, "run", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
