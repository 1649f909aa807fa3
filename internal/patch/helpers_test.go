package patch

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

func quietApplier(opts ...Option) *Applier {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewApplier(opts...)
}

// y decodes a YAML literal into an IR value.
func y(t *testing.T, src string) ir.IRValue {
	t.Helper()
	var raw any
	require.NoError(t, yaml.Unmarshal([]byte(src), &raw))
	v, err := ir.FromAny(raw)
	require.NoError(t, err)
	return v
}

func yobj(t *testing.T, src string) ir.IRObject {
	t.Helper()
	obj, ok := y(t, src).(ir.IRObject)
	require.True(t, ok, "not a map: %s", src)
	return obj
}

// assertRollsBack checks that undoing res.Log on res.Document yields before.
func assertRollsBack(t *testing.T, before ir.IRObject, res Result) {
	t.Helper()
	doc := ir.CloneObject(res.Document)
	require.NoError(t, editlog.Rollback(doc, res.Log))
	require.True(t, ir.Equal(before, doc), "rollback: want %s, got %s",
		ir.CanonicalString(before), ir.CanonicalString(doc))
}

func codes(skipped []*ApplyError) []ApplyErrorCode {
	out := make([]ApplyErrorCode, len(skipped))
	for i, s := range skipped {
		out[i] = s.Code
	}
	return out
}
