package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

func fixture() ([]string, map[string]editlog.Log) {
	positions := []string{"m0", "u1", "m2", "m3"}
	logs := map[string]editlog.Log{
		"m0": {{Op: editlog.OpInsert, Path: ir.Path{"a"}, New: ir.IRObject{"b": ir.IRInt(1)}}},
		"m2": {{Op: editlog.OpUpdate, Path: ir.Path{"a", "b"}, Old: ir.IRInt(1), New: ir.IRInt(2)}},
		"m3": {
			{Op: editlog.OpInsert, Path: ir.Path{"c"}, New: ir.IRString("x")},
			{Op: editlog.OpDelete, Path: ir.Path{"a"}, Old: ir.IRObject{"b": ir.IRInt(2)}},
		},
	}
	return positions, logs
}

func TestStateAt(t *testing.T) {
	positions, logs := fixture()

	doc, err := StateAt(positions, logs, "m2")
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"a": ir.IRObject{"b": ir.IRInt(2)}}, doc)

	doc, err = StateAt(positions, logs, "m3")
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"c": ir.IRString("x")}, doc)
}

func TestStateBefore(t *testing.T) {
	positions, logs := fixture()

	doc, err := StateBefore(positions, logs, "m2")
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"a": ir.IRObject{"b": ir.IRInt(1)}}, doc)

	doc, err = StateBefore(positions, logs, "m0")
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{}, doc)
}

func TestStateAtPosition(t *testing.T) {
	positions, logs := fixture()

	doc, err := StateAtPosition(positions, logs, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"a": ir.IRObject{"b": ir.IRInt(1)}}, doc)

	doc, err = StateAtPosition(positions, logs, -1)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{}, doc)

	_, err = StateAtPosition(positions, logs, 4)
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestAllStatesBetween(t *testing.T) {
	positions, logs := fixture()

	snaps, err := AllStatesBetween(positions, logs, "m3", "u1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.Equal(t, "u1", snaps[0].ID)
	assert.Equal(t, 1, snaps[0].Position)
	assert.Equal(t, ir.IRObject{"a": ir.IRObject{"b": ir.IRInt(1)}}, snaps[0].Document)
	assert.Equal(t, ir.IRObject{"a": ir.IRObject{"b": ir.IRInt(2)}}, snaps[1].Document)
	assert.Equal(t, ir.IRObject{"c": ir.IRString("x")}, snaps[2].Document)

	// Each snapshot is independent of the next.
	snaps[0].Document["z"] = ir.IRBool(true)
	assert.NotContains(t, snaps[1].Document, "z")
}

func TestDeterministicAndPure(t *testing.T) {
	positions, logs := fixture()
	first, err := StateAt(positions, logs, "m3")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := StateAt(positions, logs, "m3")
		require.NoError(t, err)
		assert.True(t, ir.Equal(first, again))
	}
	// Logs are not consumed or aliased by replay.
	first["c"] = ir.IRString("mutated")
	assert.Equal(t, ir.IRString("x"), logs["m3"][0].New)
}

func TestUnknownID(t *testing.T) {
	positions, logs := fixture()
	_, err := StateAt(positions, logs, "nope")
	assert.ErrorIs(t, err, ErrUnknownID)
	_, err = AllStatesBetween(positions, logs, "m0", "nope")
	assert.ErrorIs(t, err, ErrUnknownID)
}
