package editlog

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/roach88/docsync/internal/ir"
)

type patchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ToJSONPatch renders log as an RFC 6902 JSON Patch document that moves a
// document from the state before the commit to the state after it.
func ToJSONPatch(log Log) ([]byte, error) {
	ops := make([]patchOp, 0, len(log))
	for _, e := range log {
		op := patchOp{Path: pointer(e.Path)}
		switch e.Op {
		case OpInsert:
			op.Op = "add"
		case OpUpdate:
			op.Op = "replace"
			if !e.Existed() {
				op.Op = "add"
			}
		case OpDelete:
			op.Op = "remove"
		default:
			return nil, fmt.Errorf("unknown op %q at %s", e.Op, e.Path)
		}
		if e.Op != OpDelete {
			data, err := ir.MarshalCanonical(e.New)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", e.Path, err)
			}
			op.Value = data
		}
		ops = append(ops, op)
	}
	return json.Marshal(ops)
}

// ApplyJSONPatch applies the RFC 6902 rendering of log to doc and returns
// the resulting document. doc is not modified.
func ApplyJSONPatch(doc ir.IRObject, log Log) (ir.IRObject, error) {
	raw, err := ToJSONPatch(log)
	if err != nil {
		return nil, err
	}
	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("decode json patch: %w", err)
	}
	before, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	after, err := p.Apply(before)
	if err != nil {
		return nil, fmt.Errorf("apply json patch: %w", err)
	}
	var out ir.IRObject
	if err := json.Unmarshal(after, &out); err != nil {
		return nil, fmt.Errorf("decode patched document: %w", err)
	}
	return out, nil
}

// pointer converts a path to an RFC 6901 JSON Pointer.
func pointer(p ir.Path) string {
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		seg = strings.ReplaceAll(seg, "~", "~0")
		seg = strings.ReplaceAll(seg, "/", "~1")
		b.WriteString(seg)
	}
	return b.String()
}
