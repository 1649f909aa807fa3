package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/patch"
	"github.com/roach88/docsync/internal/scheduler"
)

// Scenario defines a reconciliation scenario.
// A scenario seeds a host, drives it through a sequence of steps and
// asserts on the completions and the final ledger.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scope is the ledger scope (default: Name).
	Scope string `yaml:"scope,omitempty"`

	// IDPrefix prefixes generated anchor ids (default "gen"), so the
	// n-th id handed out is "<prefix>-<n>".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Commits seed the host before the first step. No trigger fires.
	Commits []CommitSpec `yaml:"commits,omitempty"`

	// Steps run in order; each step's jobs finish before the next starts.
	Steps []Step `yaml:"steps"`

	// Assertions validate the completions and the final ledger.
	Assertions []Assertion `yaml:"assertions"`
}

// CommitSpec is one seeded commit.
type CommitSpec struct {
	// Role is user, assistant or system.
	Role string `yaml:"role"`

	// ID, when set, is anchored into Content before seeding.
	ID string `yaml:"id,omitempty"`

	Content string `yaml:"content"`
}

// Step is one host action, one direct mutation, or one bare trigger.
type Step struct {
	// Action is a host action (append, edit, delete, swipe, switch, echo)
	// or "mutate". Empty means a bare trigger.
	Action string `yaml:"action,omitempty"`

	// Trigger, for a bare trigger, names the job to submit. Host actions
	// submit the trigger the host publishes.
	Trigger string `yaml:"trigger,omitempty"`

	// Position targets the commit of edit, delete, swipe, switch and echo,
	// and the commit of a bare trigger (-1 when absent).
	Position *int `yaml:"position,omitempty"`

	// Role and ID apply to append.
	Role string `yaml:"role,omitempty"`
	ID   string `yaml:"id,omitempty"`

	// Content applies to append, edit and swipe.
	Content string `yaml:"content,omitempty"`

	// Variant applies to switch.
	Variant int `yaml:"variant,omitempty"`

	// Mutation applies to mutate.
	Mutation *MutationSpec `yaml:"mutation,omitempty"`

	// With holds steps performed while this step's debounce window is
	// open. Their jobs join this step's batch.
	With []Step `yaml:"with,omitempty"`
}

// MutationSpec is a direct mutation through the caller API. Exactly one of
// Path and Object is set; delete by path takes no value.
type MutationSpec struct {
	Op     string         `yaml:"op"`
	Path   string         `yaml:"path,omitempty"`
	Value  any            `yaml:"value,omitempty"`
	Object map[string]any `yaml:"object,omitempty"`
}

// Assertion validates the run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "document": the stripped document (or the value at Path) equals Expect
	// - "positions": the final position sequence equals IDs
	// - "log": the ops recorded for ID equal Ops
	// - "snapshot": the document as of ID (or Position) equals Expect
	// - "completion": completion At (negative counts from the end) matches
	//   Phases, IDs, LastID and Expect, whichever are set
	// - "completion_count": exactly Count completions were emitted
	Type string `yaml:"type"`

	Path     string   `yaml:"path,omitempty"`
	Expect   any      `yaml:"expect,omitempty"`
	IDs      []string `yaml:"ids,omitempty"`
	ID       string   `yaml:"id,omitempty"`
	Ops      []string `yaml:"ops,omitempty"`
	Position *int     `yaml:"position,omitempty"`
	At       int      `yaml:"at,omitempty"`
	Phases   []string `yaml:"phases,omitempty"`
	LastID   string   `yaml:"last_id,omitempty"`
	Count    int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertDocument        = "document"
	AssertPositions       = "positions"
	AssertLog             = "log"
	AssertSnapshot        = "snapshot"
	AssertCompletion      = "completion"
	AssertCompletionCount = "completion_count"
)

// Step action constants.
const (
	ActionAppend = "append"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionSwipe  = "swipe"
	ActionSwitch = "switch"
	ActionEcho   = "echo"
	ActionMutate = "mutate"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, c := range s.Commits {
		if err := validateRole(c.Role); err != nil {
			return fmt.Errorf("commits[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step, true); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateRole(role string) error {
	switch host.Role(role) {
	case host.RoleUser, host.RoleAssistant, host.RoleSystem:
		return nil
	}
	return fmt.Errorf("unknown role %q", role)
}

func validateStep(where string, st Step, top bool) error {
	needsPosition := false
	switch st.Action {
	case "":
		if st.Trigger == "" {
			return fmt.Errorf("%s: action or trigger is required", where)
		}
		if !scheduler.Known(scheduler.Trigger(st.Trigger)) {
			return fmt.Errorf("%s: unknown trigger %q", where, st.Trigger)
		}
	case ActionAppend:
		if err := validateRole(st.Role); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	case ActionEdit, ActionDelete, ActionSwipe, ActionSwitch, ActionEcho:
		needsPosition = true
	case ActionMutate:
		if err := validateMutation(st.Mutation); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	default:
		return fmt.Errorf("%s: unknown action %q", where, st.Action)
	}
	if st.Action != "" && st.Trigger != "" {
		return fmt.Errorf("%s: trigger is implied by action %q", where, st.Action)
	}
	if needsPosition && st.Position == nil {
		return fmt.Errorf("%s: position is required for %s", where, st.Action)
	}
	if !top && len(st.With) > 0 {
		return fmt.Errorf("%s: with may not nest", where)
	}
	for i, w := range st.With {
		if err := validateStep(fmt.Sprintf("%s.with[%d]", where, i), w, false); err != nil {
			return err
		}
	}
	return nil
}

func validateMutation(m *MutationSpec) error {
	if m == nil {
		return fmt.Errorf("mutation is required for mutate")
	}
	kind, err := patch.ParseKind(m.Op)
	if err != nil {
		return fmt.Errorf("mutation: %w", err)
	}
	switch {
	case m.Path == "" && m.Object == nil:
		return fmt.Errorf("mutation: path or object is required")
	case m.Path != "" && m.Object != nil:
		return fmt.Errorf("mutation: path and object are exclusive")
	case m.Path != "" && kind != patch.KindDelete && m.Value == nil:
		return fmt.Errorf("mutation: %s by path needs a value", kind)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDocument:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for document", index)
		}
	case AssertPositions:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for positions", index)
		}
	case AssertLog:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for log", index)
		}
	case AssertSnapshot:
		if a.ID == "" && a.Position == nil {
			return fmt.Errorf("assertions[%d]: id or position is required for snapshot", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for snapshot", index)
		}
	case AssertCompletion:
	case AssertCompletionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for completion_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
