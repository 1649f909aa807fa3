package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

// State is the triple every reconciliation reads and rewrites: the derived
// document, one edit log per commit id, and the position sequence (index =
// commit position, value = id last known to occupy it).
type State struct {
	Document  ir.IRObject            `json:"document"`
	Logs      map[string]editlog.Log `json:"logs"`
	Positions []string               `json:"positions"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Document: ir.IRObject{}, Logs: map[string]editlog.Log{}}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{
		Document:  ir.CloneObject(s.Document),
		Logs:      make(map[string]editlog.Log, len(s.Logs)),
		Positions: append([]string(nil), s.Positions...),
	}
	if out.Document == nil {
		out.Document = ir.IRObject{}
	}
	for id, log := range s.Logs {
		out.Logs[id] = log.Clone()
	}
	return out
}

// normalize fills nil fields so decoded and zero states are usable.
func (s *State) normalize() {
	if s.Document == nil {
		s.Document = ir.IRObject{}
	}
	if s.Logs == nil {
		s.Logs = map[string]editlog.Log{}
	}
}

// Log returns the log recorded for id (nil when none).
func (s *State) Log(id string) editlog.Log {
	return s.Logs[id]
}

// PositionOf returns the recorded position of id, or -1.
func (s *State) PositionOf(id string) int {
	for i, p := range s.Positions {
		if p == id {
			return i
		}
	}
	return -1
}

// LastID returns the id at the highest recorded position ("" when empty).
func (s *State) LastID() string {
	if len(s.Positions) == 0 {
		return ""
	}
	return s.Positions[len(s.Positions)-1]
}

// LogIDs returns the ids that have a log, sorted.
func (s *State) LogIDs() []string {
	ids := make([]string, 0, len(s.Logs))
	for id := range s.Logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Encode serializes the state as JSON.
func Encode(s *State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses a state produced by Encode. Empty input is an empty state.
func Decode(data []byte) (*State, error) {
	s := NewState()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	s.normalize()
	return s, nil
}

// Store persists one State per scope.
//
// There are no native transactions across calls: Update is the only
// read-modify-write primitive, and callers serialize their own Updates.
type Store interface {
	// Load returns a copy of the state for scope (empty when none).
	Load(ctx context.Context, scope string) (*State, error)

	// Update passes a copy of the current state to fn and, if fn returns
	// nil, stores the state fn leaves behind.
	Update(ctx context.Context, scope string, fn func(*State) error) error
}

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	scopes map[string]*State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scopes: map[string]*State{}}
}

var _ Store = (*MemoryStore)(nil)

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, scope string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.scopes[scope]; ok {
		return s.Clone(), nil
	}
	return NewState(), nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, scope string, fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.scopes[scope]
	if !ok {
		cur = NewState()
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.normalize()
	m.scopes[scope] = next
	return nil
}
