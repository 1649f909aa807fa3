package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

// marshalDocument converts a document to canonical JSON TEXT for storage.
// Canonical form keeps the stored bytes stable across identical states.
func marshalDocument(doc ir.IRObject) (string, error) {
	if doc == nil {
		doc = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

// unmarshalDocument parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON which keeps large integers exact.
func unmarshalDocument(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return obj, nil
}

// marshalValue is marshalDocument for any value; nil stores as null.
func marshalValue(v ir.IRValue) (string, error) {
	if v == nil {
		return "null", nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// marshalLog converts an edit log to JSON TEXT.
func marshalLog(log editlog.Log) (string, error) {
	if log == nil {
		log = editlog.Log{}
	}
	data, err := json.Marshal(log)
	if err != nil {
		return "", fmt.Errorf("marshal edit log: %w", err)
	}
	return string(data), nil
}

func unmarshalLog(data string) (editlog.Log, error) {
	log := editlog.Log{}
	if err := json.Unmarshal([]byte(data), &log); err != nil {
		return nil, fmt.Errorf("unmarshal edit log: %w", err)
	}
	return log, nil
}

// marshalStrings converts a string list to JSON TEXT.
// Uses json.Encoder with HTML escaping disabled so stored content is byte
// for byte what the host wrote.
func marshalStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // CRITICAL: commit content is full of <tags>
	if err := enc.Encode(list); err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalStrings(data string) ([]string, error) {
	list := []string{}
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return list, nil
}
