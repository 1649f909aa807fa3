package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/roach88/docsync/internal/ir"
)

// Diff renders a line diff between two documents as indented JSON, one
// line per row prefixed with "+ ", "- " or "  ". Equal documents produce
// no +/- rows.
func Diff(a, b ir.IRValue) (string, error) {
	ta, err := pretty(a)
	if err != nil {
		return "", err
	}
	tb, err := pretty(b)
	if err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(ta, tb)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
		}
	}
	return out.String(), nil
}

// Changed reports whether a diff produced by Diff has any +/- row.
func Changed(diff string) bool {
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+ ") || strings.HasPrefix(line, "- ") {
			return true
		}
	}
	return false
}

func pretty(v ir.IRValue) (string, error) {
	data, err := json.MarshalIndent(ir.ToAny(v), "", "  ")
	if err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return string(data) + "\n", nil
}
