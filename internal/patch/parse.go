package patch

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docsync/internal/ir"
)

// Block is one instruction block found in commit content.
type Block struct {
	Kind      Kind
	Offset    int
	Fragments []ir.IRValue
}

// Instructions groups a commit's blocks by kind, each in source order.
type Instructions struct {
	Blocks map[Kind][]Block
}

// Empty reports whether no usable fragment was found.
func (in Instructions) Empty() bool {
	for _, blocks := range in.Blocks {
		for _, b := range blocks {
			if len(b.Fragments) > 0 {
				return false
			}
		}
	}
	return true
}

var openTag = regexp.MustCompile(`(?i)<(insert|update|delete)>`)

var closeTag = map[Kind]*regexp.Regexp{
	KindInsert: regexp.MustCompile(`(?i)</insert>`),
	KindUpdate: regexp.MustCompile(`(?i)</update>`),
	KindDelete: regexp.MustCompile(`(?i)</delete>`),
}

// fragmentSep splits a block body into fragments: a line holding only ---.
var fragmentSep = regexp.MustCompile(`(?m)^[ \t]*---[ \t]*\r?$`)

// Parse extracts instruction blocks from content. Malformed fragments and
// unclosed blocks are reported and skipped; everything well formed is
// still returned.
func Parse(content string) (Instructions, []error) {
	in := Instructions{Blocks: map[Kind][]Block{}}
	var errs []error

	pos := 0
	for pos < len(content) {
		loc := openTag.FindStringSubmatchIndex(content[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		bodyStart := pos + loc[1]
		kind := Kind(strings.ToLower(content[pos+loc[2] : pos+loc[3]]))

		// A block is unclosed when another opening tag comes before its own
		// closing tag.
		end := closeTag[kind].FindStringIndex(content[bodyStart:])
		if end == nil || openTag.MatchString(content[bodyStart:bodyStart+end[0]]) {
			errs = append(errs, &ParseError{Kind: kind, Offset: start, Fragment: -1, Err: ErrUnclosedTag})
			pos = bodyStart
			continue
		}
		body := content[bodyStart : bodyStart+end[0]]
		pos = bodyStart + end[1]

		block := Block{Kind: kind, Offset: start}
		for i, frag := range fragmentSep.Split(body, -1) {
			if strings.TrimSpace(frag) == "" {
				continue
			}
			v, err := decodeFragment(kind, frag)
			if err != nil {
				errs = append(errs, &ParseError{Kind: kind, Offset: start, Fragment: i, Err: err})
				continue
			}
			block.Fragments = append(block.Fragments, v)
		}
		in.Blocks[kind] = append(in.Blocks[kind], block)
	}
	return in, errs
}

// decodeFragment decodes one YAML (or JSON) fragment. Insert and update
// fragments must be maps; delete also accepts a list of names.
func decodeFragment(kind Kind, frag string) (ir.IRValue, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(frag), &raw); err != nil {
		return nil, err
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case ir.IRObject:
		return v, nil
	case ir.IRArray:
		if kind == KindDelete {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s fragment must be a map, got %s", kind, ir.CanonicalString(v))
}

// Render formats patch as an instruction block that Parse reads back.
func Render(kind Kind, patch ir.IRValue) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ir.ToAny(patch)); err != nil {
		return "", fmt.Errorf("render %s block: %w", kind, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("render %s block: %w", kind, err)
	}
	return fmt.Sprintf("<%s>\n%s</%s>", kind, buf.String(), kind), nil
}
