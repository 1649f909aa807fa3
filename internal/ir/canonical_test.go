package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    IRValue
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"float", IRFloat(0.5), "0.5"},
		{"null", IRNull{}, "null"},
		{"absent", nil, "null"},
		{"bool true", IRBool(true), "true"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"array of ints", IRArray{IRInt(1), IRInt(2), IRInt(3)}, "[1,2,3]"},
		{"nested object", IRObject{"b": IRInt(2), "a": IRObject{"z": IRBool(false)}}, `{"a":{"z":false},"b":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	result, err := MarshalCanonical(IRString("<b>&</b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<b>&</b>"`, string(result))
}

func TestMarshalCanonical_EscapedBackslashPreserved(t *testing.T) {
	// A literal backslash followed by "u2028" text must stay escaped.
	result, err := MarshalCanonical(IRString(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestCanonicalString_Deterministic(t *testing.T) {
	obj := IRObject{"z": IRInt(1), "a": IRArray{IRString("x")}, "m": IRNull{}}
	first := CanonicalString(obj)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, CanonicalString(obj))
	}
	assert.Equal(t, `{"a":["x"],"m":null,"z":1}`, first)
}
