package scheduler

import (
	"fmt"
	"time"

	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/patch"
)

// Trigger names what caused a job. Host triggers keep their event names;
// the rest are raised by the scheduler itself or its callers.
type Trigger string

const (
	TriggerChatChanged       = Trigger(host.EventChatChanged)
	TriggerMessageSent       = Trigger(host.EventMessageSent)
	TriggerMessageReceived   = Trigger(host.EventMessageReceived)
	TriggerMessageDeleted    = Trigger(host.EventMessageDeleted)
	TriggerMessageEdited     = Trigger(host.EventMessageEdited)
	TriggerMessageSwiped     = Trigger(host.EventMessageSwiped)
	TriggerMessageUpdated    = Trigger(host.EventMessageUpdated)
	TriggerGenerationStarted = Trigger(host.EventGenerationStarted)
	TriggerGenerationEnded   = Trigger(host.EventGenerationEnded)

	// TriggerMutation is a direct write submitted through the api.
	TriggerMutation Trigger = "mutation"

	// TriggerEditGenerate is fused from an edit followed by a generation.
	TriggerEditGenerate Trigger = "edit_generate"

	// TriggerSwipeGenerate is fused from a swipe followed by a generation.
	TriggerSwipeGenerate Trigger = "swipe_generate"
)

// Group is the route a job takes once it is dispatched.
type Group string

const (
	// GroupInit loads a scope for the first time; runs a full resync.
	GroupInit Group = "init"

	// GroupFull runs a full resync.
	GroupFull Group = "full"

	// GroupDirected reprocesses from the job's position onward.
	GroupDirected Group = "directed"

	// GroupTargeted rolls back from the job's position and replays up to
	// it, leaving the commit there to be regenerated.
	GroupTargeted Group = "targeted"

	// GroupMutation applies the job's patch directly.
	GroupMutation Group = "mutation"

	// GroupIdentity only claims an identity for the commit.
	GroupIdentity Group = "identity"

	// GroupDetector jobs exist to start a combination and are never
	// dispatched on their own.
	GroupDetector Group = "detector"
)

// groupOf maps every trigger to its default group.
var groupOf = map[Trigger]Group{
	TriggerChatChanged:       GroupInit,
	TriggerMessageSent:       GroupIdentity,
	TriggerMessageReceived:   GroupFull,
	TriggerMessageDeleted:    GroupFull,
	TriggerMessageEdited:     GroupDirected,
	TriggerMessageSwiped:     GroupDirected,
	TriggerMessageUpdated:    GroupDirected,
	TriggerGenerationStarted: GroupDetector,
	TriggerGenerationEnded:   GroupFull,
	TriggerMutation:          GroupMutation,
	TriggerEditGenerate:      GroupDirected,
	TriggerSwipeGenerate:     GroupTargeted,
}

// GroupOf returns the default group of t. Unknown triggers run a full
// resync, the one route that is correct for any change.
func GroupOf(t Trigger) Group {
	if g, ok := groupOf[t]; ok {
		return g
	}
	return GroupFull
}

// Job is one queued unit of work.
type Job struct {
	Trigger  Trigger
	Group    Group
	Position int // -1 when the job names no commit
	At       time.Time

	// Kind and Patch are set for GroupMutation jobs only.
	Kind  patch.Kind
	Patch ir.IRValue

	Payload any
}

// NewJob creates a job for trigger t at position.
func NewJob(t Trigger, position int) Job {
	return Job{Trigger: t, Group: GroupOf(t), Position: position}
}

// MutationJob creates a direct-write job for the commit at position.
func MutationJob(position int, kind patch.Kind, p ir.IRValue) Job {
	j := NewJob(TriggerMutation, position)
	j.Kind = kind
	j.Patch = p
	return j
}

// FromEvent converts a host trigger into a job.
func FromEvent(e host.Event) Job {
	j := NewJob(Trigger(e.Type), e.Position)
	j.Payload = e.Payload
	return j
}

// String renders a job for logs.
func (j Job) String() string {
	if j.Position < 0 {
		return fmt.Sprintf("%s/%s", j.Trigger, j.Group)
	}
	return fmt.Sprintf("%s/%s@%d", j.Trigger, j.Group, j.Position)
}

// Known reports whether t is a trigger the scheduler routes explicitly.
func Known(t Trigger) bool {
	_, ok := groupOf[t]
	return ok
}
