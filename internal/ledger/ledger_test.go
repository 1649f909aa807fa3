package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

func sampleState() *State {
	return &State{
		Document: ir.IRObject{"a": ir.IRObject{"b": ir.IRInt(2)}},
		Logs: map[string]editlog.Log{
			"m0": {{Op: editlog.OpInsert, Path: ir.Path{"a"}, New: ir.IRObject{"b": ir.IRInt(1)}}},
			"m1": {{Op: editlog.OpUpdate, Path: ir.Path{"a", "b"}, Old: ir.IRInt(1), New: ir.IRInt(2)}},
			"u0": nil,
		},
		Positions: []string{"m0", "u0", "m1"},
	}
}

func TestState_EncodeDecode(t *testing.T) {
	s := sampleState()
	data, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s.Positions, got.Positions)
	assert.True(t, ir.Equal(s.Document, got.Document))
	assert.Equal(t, s.Logs["m1"], got.Logs["m1"])
	assert.Equal(t, []string{"m0", "m1", "u0"}, got.LogIDs())
}

func TestDecode_EmptyIsEmptyState(t *testing.T) {
	s, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{}, s.Document)
	assert.Empty(t, s.Positions)
	assert.Equal(t, "", s.LastID())
}

func TestState_Accessors(t *testing.T) {
	s := sampleState()
	assert.Equal(t, 2, s.PositionOf("m1"))
	assert.Equal(t, -1, s.PositionOf("zz"))
	assert.Equal(t, "m1", s.LastID())
	assert.Len(t, s.Log("m0"), 1)
}

func TestMemoryStore_UpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Update(ctx, "chat", func(s *State) error {
		s.Positions = []string{"m0"}
		s.Document["x"] = ir.IRInt(1)
		return nil
	}))

	boom := errors.New("boom")
	err := st.Update(ctx, "chat", func(s *State) error {
		s.Positions = append(s.Positions, "m1")
		s.Document["x"] = ir.IRInt(2)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := st.Load(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, []string{"m0"}, s.Positions)
	assert.Equal(t, ir.IRInt(1), s.Document["x"])

	// Loaded copies are detached.
	s.Document["x"] = ir.IRInt(3)
	again, _ := st.Load(ctx, "chat")
	assert.Equal(t, ir.IRInt(1), again.Document["x"])

	other, _ := st.Load(ctx, "other")
	assert.Empty(t, other.Positions)
}
