package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath_StringRoundTrip(t *testing.T) {
	tests := []Path{
		{},
		{"a"},
		{"a", "b", "c"},
		{"v1.2", "x"},
		{`back\slash`, "$meta"},
	}
	for _, p := range tests {
		t.Run(p.String(), func(t *testing.T) {
			assert.Equal(t, p, ParsePath(p.String()))
		})
	}
}

func TestPath_DottedKeyIsEscaped(t *testing.T) {
	p := Path{"version.major"}
	assert.Equal(t, `version\.major`, p.String())
	assert.Len(t, ParsePath(p.String()), 1)
}

func TestPath_ChildDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = "a"
	left := base.Child("b")
	right := base.Child("c")
	assert.Equal(t, Path{"a", "b"}, left)
	assert.Equal(t, Path{"a", "c"}, right)
}

func TestPath_HasPrefix(t *testing.T) {
	assert.True(t, Path{"a", "b"}.HasPrefix(Path{"a"}))
	assert.True(t, Path{"a", "b"}.HasPrefix(RootPath))
	assert.True(t, Path{"a"}.HasPrefix(Path{"a"}))
	assert.False(t, Path{"a"}.HasPrefix(Path{"a", "b"}))
	assert.False(t, Path{"ab"}.HasPrefix(Path{"a"}))
}

func TestGet(t *testing.T) {
	doc := IRObject{
		"a":    IRObject{"b": IRInt(1)},
		"list": IRArray{IRString("x"), IRString("y")},
	}

	v, ok := Get(doc, Path{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, IRInt(1), v)

	v, ok = Get(doc, Path{"list", "1"})
	require.True(t, ok)
	assert.Equal(t, IRString("y"), v)

	_, ok = Get(doc, Path{"list", "5"})
	assert.False(t, ok)
	_, ok = Get(doc, Path{"a", "missing"})
	assert.False(t, ok)
	_, ok = Get(doc, Path{"a", "b", "deeper"})
	assert.False(t, ok)
}

func TestSet_RequiresParentUnlessCreating(t *testing.T) {
	doc := IRObject{}

	err := Set(doc, Path{"a", "b"}, IRInt(1), false)
	assert.Error(t, err)

	require.NoError(t, Set(doc, Path{"a", "b"}, IRInt(1), true))
	assert.True(t, Equal(IRObject{"a": IRObject{"b": IRInt(1)}}, doc))
}

func TestSet_ArrayAppendAndReplace(t *testing.T) {
	doc := IRObject{"list": IRArray{IRString("x")}}

	require.NoError(t, Set(doc, Path{"list", "1"}, IRString("y"), false))
	require.NoError(t, Set(doc, Path{"list", "0"}, IRString("w"), false))
	assert.True(t, Equal(IRArray{IRString("w"), IRString("y")}, doc["list"]))

	assert.Error(t, Set(doc, Path{"list", "5"}, IRString("z"), false))
}

func TestUnsetAndRestore_ArrayElement(t *testing.T) {
	doc := IRObject{"list": IRArray{IRString("a"), IRString("b"), IRString("c")}}

	removed, err := Unset(doc, Path{"list", "1"})
	require.NoError(t, err)
	assert.True(t, removed)
	assert.True(t, Equal(IRArray{IRString("a"), IRString("c")}, doc["list"]))

	require.NoError(t, Restore(doc, Path{"list", "1"}, IRString("b")))
	assert.True(t, Equal(IRArray{IRString("a"), IRString("b"), IRString("c")}, doc["list"]))
}

func TestUnset_Missing(t *testing.T) {
	doc := IRObject{"a": IRInt(1)}

	removed, err := Unset(doc, Path{"b"})
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = Unset(doc, Path{"x", "y"})
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = Unset(doc, RootPath)
	assert.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	orig := IRObject{"a": IRObject{"b": IRArray{IRInt(1)}}}
	cp := Clone(orig).(IRObject)

	cp["a"].(IRObject)["b"].(IRArray)[0] = IRInt(99)
	assert.Equal(t, IRInt(1), orig["a"].(IRObject)["b"].(IRArray)[0])
}

func TestEqual_NumericCrossType(t *testing.T) {
	assert.True(t, Equal(IRInt(2), IRFloat(2)))
	assert.False(t, Equal(IRInt(2), IRString("2")))
	assert.False(t, Equal(nil, IRNull{}))
	assert.True(t, Equal(nil, nil))
}
