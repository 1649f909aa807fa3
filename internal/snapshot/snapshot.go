package snapshot

import (
	"errors"
	"fmt"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

// ErrUnknownID is returned when a target id is not in the position sequence.
var ErrUnknownID = errors.New("id not in position sequence")

// Snapshot is the document as of one commit.
type Snapshot struct {
	ID       string      `json:"id"`
	Position int         `json:"position"`
	Document ir.IRObject `json:"document"`
}

// StateAt replays, from an empty document, the log of every commit in
// position order up to and including id.
func StateAt(positions []string, logs map[string]editlog.Log, id string) (ir.IRObject, error) {
	pos, err := indexOf(positions, id)
	if err != nil {
		return nil, err
	}
	return replay(positions[:pos+1], logs)
}

// StateBefore is StateAt excluding id itself.
func StateBefore(positions []string, logs map[string]editlog.Log, id string) (ir.IRObject, error) {
	pos, err := indexOf(positions, id)
	if err != nil {
		return nil, err
	}
	return replay(positions[:pos], logs)
}

// StateAtPosition is StateAt for the commit at position. A negative
// position yields the empty document.
func StateAtPosition(positions []string, logs map[string]editlog.Log, position int) (ir.IRObject, error) {
	if position >= len(positions) {
		return nil, fmt.Errorf("position %d: %w", position, ErrUnknownID)
	}
	if position < 0 {
		return ir.IRObject{}, nil
	}
	return replay(positions[:position+1], logs)
}

// AllStatesBetween returns one snapshot per commit from a to b inclusive,
// in position order. a and b may be given in either order.
func AllStatesBetween(positions []string, logs map[string]editlog.Log, a, b string) ([]Snapshot, error) {
	from, err := indexOf(positions, a)
	if err != nil {
		return nil, err
	}
	to, err := indexOf(positions, b)
	if err != nil {
		return nil, err
	}
	if from > to {
		from, to = to, from
	}

	doc, err := replay(positions[:from], logs)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, to-from+1)
	for pos := from; pos <= to; pos++ {
		id := positions[pos]
		if err := editlog.Apply(doc, logs[id]); err != nil {
			return nil, fmt.Errorf("replay %s at %d: %w", id, pos, err)
		}
		out = append(out, Snapshot{ID: id, Position: pos, Document: ir.CloneObject(doc)})
	}
	return out, nil
}

// Replay applies the logs of ids in order to an empty document.
func Replay(ids []string, logs map[string]editlog.Log) (ir.IRObject, error) {
	return replay(ids, logs)
}

func replay(ids []string, logs map[string]editlog.Log) (ir.IRObject, error) {
	doc := ir.IRObject{}
	for pos, id := range ids {
		if err := editlog.Apply(doc, logs[id]); err != nil {
			return nil, fmt.Errorf("replay %s at %d: %w", id, pos, err)
		}
	}
	return doc, nil
}

func indexOf(positions []string, id string) (int, error) {
	for i, p := range positions {
		if p == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%q: %w", id, ErrUnknownID)
}
