package editlog

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/docsync/internal/ir"
)

// Op identifies the kind of change an Entry records.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Entry records one reversible change to the document.
//
// INVARIANT: update and delete entries carry enough to reverse. Old == nil is
// the explicit "did not exist" marker; a stored JSON null is ir.IRNull{}.
// Insert entries reverse by unsetting Path.
type Entry struct {
	Op   Op
	Path ir.Path
	Old  ir.IRValue
	New  ir.IRValue
}

// Existed reports whether Path held a value before this entry.
func (e Entry) Existed() bool {
	return e.Old != nil
}

type entryJSON struct {
	Op   Op              `json:"op"`
	Path ir.Path         `json:"path"`
	Old  json.RawMessage `json:"value_old,omitempty"`
	New  json.RawMessage `json:"value_new,omitempty"`
}

// MarshalJSON omits value_old when the path did not exist, so the absence
// marker survives a round trip distinct from null.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{Op: e.Op, Path: e.Path}
	if e.Old != nil {
		data, err := ir.MarshalIRValue(e.Old)
		if err != nil {
			return nil, fmt.Errorf("marshal value_old at %s: %w", e.Path, err)
		}
		out.Old = data
	}
	if e.New != nil {
		data, err := ir.MarshalIRValue(e.New)
		if err != nil {
			return nil, fmt.Errorf("marshal value_new at %s: %w", e.Path, err)
		}
		out.New = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Entry{Op: in.Op, Path: in.Path}
	if len(in.Old) > 0 {
		v, err := ir.UnmarshalIRValue(in.Old)
		if err != nil {
			return fmt.Errorf("value_old at %s: %w", in.Path, err)
		}
		e.Old = v
	}
	if len(in.New) > 0 {
		v, err := ir.UnmarshalIRValue(in.New)
		if err != nil {
			return fmt.Errorf("value_new at %s: %w", in.Path, err)
		}
		e.New = v
	}
	return nil
}

// Log is the ordered list of entries produced by processing one commit.
// It is replaced wholesale whenever its commit is reprocessed.
type Log []Entry

// Clone returns a deep copy of the log.
func (l Log) Clone() Log {
	if l == nil {
		return nil
	}
	out := make(Log, len(l))
	for i, e := range l {
		out[i] = Entry{Op: e.Op, Path: append(ir.Path(nil), e.Path...), Old: ir.Clone(e.Old), New: ir.Clone(e.New)}
	}
	return out
}

// Lookup returns the value the log leaves at path, scanning from its most
// recent entry. found is false when no entry in the log touches path.
//
// An entry determines path when it targets path itself, or an ancestor whose
// written subtree contains path. When the most recent entry touching path
// deletes it (or an ancestor), or writes only part of it (a descendant),
// Lookup reports found with a nil value: the log settles that path was
// touched but holds no whole value for it, and callers read the document.
//
// Deleting an array element shifts the elements after it, so an older entry
// no longer describes what sits at a later index. A delete of a sibling
// element at or before path's index therefore also reports found with a
// nil value.
func (l Log) Lookup(path ir.Path) (value ir.IRValue, found bool) {
	for i := len(l) - 1; i >= 0; i-- {
		e := l[i]
		if len(e.Path) > len(path) && e.Path.HasPrefix(path) {
			return nil, true
		}
		if e.Op == OpDelete && shifts(e.Path, path) {
			return nil, true
		}
		if !path.HasPrefix(e.Path) {
			continue
		}
		rest := path[len(e.Path):]
		switch e.Op {
		case OpDelete:
			return nil, true
		case OpInsert, OpUpdate:
			if len(rest) == 0 {
				return e.New, true
			}
			if v, ok := ir.Get(e.New, rest); ok {
				return v, true
			}
			return nil, true
		}
	}
	return nil, false
}

// shifts reports whether deleting the element at deleted moves the node at
// path: path runs through a sibling of deleted with an index at or after it.
func shifts(deleted, path ir.Path) bool {
	if deleted.IsRoot() || len(path) < len(deleted) {
		return false
	}
	parent := deleted.Parent()
	if !path.HasPrefix(parent) || path.HasPrefix(deleted) {
		return false
	}
	at, err := strconv.Atoi(deleted.Last())
	if err != nil || at < 0 {
		return false
	}
	idx, err := strconv.Atoi(path[len(parent)])
	if err != nil {
		return false
	}
	return idx >= at
}

// Rollback reverse-applies log to doc in place.
//
// CRITICAL: entries are undone newest first. A commit may write the same
// path more than once; only reverse order restores the value that preceded
// the first write.
func Rollback(doc ir.IRObject, log Log) error {
	for i := len(log) - 1; i >= 0; i-- {
		e := log[i]
		if e.Path.IsRoot() {
			return fmt.Errorf("entry %d: cannot roll back the document root", i)
		}
		switch e.Op {
		case OpInsert:
			if _, err := ir.Unset(doc, e.Path); err != nil {
				return fmt.Errorf("undo insert %s: %w", e.Path, err)
			}
		case OpUpdate, OpDelete:
			if !e.Existed() {
				if _, err := ir.Unset(doc, e.Path); err != nil {
					return fmt.Errorf("undo %s %s: %w", e.Op, e.Path, err)
				}
				continue
			}
			if err := restore(doc, e); err != nil {
				return fmt.Errorf("undo %s %s: %w", e.Op, e.Path, err)
			}
		default:
			return fmt.Errorf("entry %d: unknown op %q", i, e.Op)
		}
	}
	return nil
}

// restore puts e.Old back. A deleted array element is re-inserted at its
// index; an updated one is replaced in place.
func restore(doc ir.IRObject, e Entry) error {
	old := ir.Clone(e.Old)
	if e.Op == OpDelete {
		return ir.Restore(doc, e.Path, old)
	}
	return ir.Set(doc, e.Path, old, true)
}

// Apply replays log forward onto doc in place: insert and update write New,
// delete unsets.
func Apply(doc ir.IRObject, log Log) error {
	for i, e := range log {
		switch e.Op {
		case OpInsert, OpUpdate:
			if err := ir.Set(doc, e.Path, ir.Clone(e.New), true); err != nil {
				return fmt.Errorf("replay %s %s: %w", e.Op, e.Path, err)
			}
		case OpDelete:
			if _, err := ir.Unset(doc, e.Path); err != nil {
				return fmt.Errorf("replay delete %s: %w", e.Path, err)
			}
		default:
			return fmt.Errorf("entry %d: unknown op %q", i, e.Op)
		}
	}
	return nil
}
