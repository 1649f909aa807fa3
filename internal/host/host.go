package host

import (
	"context"
	"errors"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

// ErrUnknownCommit is returned for a position outside the commit list.
var ErrUnknownCommit = errors.New("unknown commit")

// Role is the author kind of a commit.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// CarriesInstructions reports whether commits of this role may embed patch
// instructions. User commits never do; they still claim an identity.
func (r Role) CarriesInstructions() bool {
	return r != RoleUser
}

// Commit is one host-owned record. Content is the active variant; Variants
// holds every alternate (Content == Variants[Active] when Variants is set).
type Commit struct {
	Position int      `json:"position"`
	Role     Role     `json:"role"`
	Content  string   `json:"content"`
	Variants []string `json:"variants,omitempty"`
	Active   int      `json:"active"`
}

// CommitStore reads and rewrites host commits.
type CommitStore interface {
	// Commits returns the commits in [from, to), clamped to the list.
	Commits(ctx context.Context, from, to int) ([]Commit, error)

	// Len returns the number of commits.
	Len(ctx context.Context) (int, error)

	// SetContent rewrites the active content of the commit at position.
	SetContent(ctx context.Context, position int, content string) error
}

// All reads the whole commit list.
func All(ctx context.Context, cs CommitStore) ([]Commit, error) {
	n, err := cs.Len(ctx)
	if err != nil {
		return nil, err
	}
	return cs.Commits(ctx, 0, n)
}

// Phase names a stage a job went through.
type Phase string

const (
	PhaseRollback       Phase = "rollback"
	PhaseApply          Phase = "apply"
	PhaseResync         Phase = "resync"
	PhaseDirectMutation Phase = "direct-mutation"
)

// Completion is emitted once per processed job.
type Completion struct {
	Scope        string                 `json:"scope"`
	LastID       string                 `json:"last_id"`
	LastPosition int                    `json:"last_position"`
	Phases       []Phase                `json:"phases"`
	Positions    []string               `json:"positions"`
	Logs         map[string]editlog.Log `json:"logs"`
	Document     ir.IRObject            `json:"document"`
	Stripped     ir.IRValue             `json:"stripped"`
}

// Notifier receives completion notifications.
type Notifier interface {
	Notify(ctx context.Context, c Completion)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Completion)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, c Completion) { f(ctx, c) }

// EventType names a host trigger.
type EventType string

const (
	EventChatChanged       EventType = "chat_changed"
	EventMessageSent       EventType = "message_sent"
	EventMessageReceived   EventType = "message_received"
	EventMessageDeleted    EventType = "message_deleted"
	EventMessageEdited     EventType = "message_edited"
	EventMessageSwiped     EventType = "message_swiped"
	EventMessageUpdated    EventType = "message_updated"
	EventGenerationStarted EventType = "generation_started"
	EventGenerationEnded   EventType = "generation_ended"
)

// Event is one trigger. Position is -1 when the trigger names no commit;
// Payload is passed through untouched.
type Event struct {
	Type     EventType `json:"type"`
	Position int       `json:"position"`
	Payload  any       `json:"payload,omitempty"`
}

// Bus delivers host triggers to subscribers.
type Bus interface {
	// Subscribe registers fn for every event and returns a cancel func.
	Subscribe(fn func(Event)) (cancel func())
}
