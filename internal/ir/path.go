package ir

import (
	"encoding/json"
	"strings"
)

// Path addresses a node in a document as an ordered list of segments.
//
// Paths stay segmented while appliers recurse; they are joined into a
// dotted string only at the log/serialization boundary. Segments that
// contain '.' or '\' are escaped with a backslash so ParsePath(p.String())
// always returns the original segments.
type Path []string

// RootPath is the empty path addressing the document root.
var RootPath = Path{}

// Child returns a new path with seg appended. The receiver is never aliased.
func (p Path) Child(seg string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// Parent returns the path without its last segment.
// The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// Last returns the final segment, or "" for the root.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// IsRoot reports whether p addresses the document root.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// HasPrefix reports whether prefix is p itself or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both paths have identical segments.
func (p Path) Equal(other Path) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}

// String joins segments with '.', escaping separators inside segments.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		for _, r := range seg {
			if r == '.' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParsePath splits a dotted path, honouring backslash escapes.
// The empty string parses to the root path.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	var (
		out     Path
		cur     strings.Builder
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '.':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

// MarshalJSON encodes the path in its dotted form.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a dotted path.
func (p *Path) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParsePath(s)
	return nil
}
