package patch

import (
	"errors"
	"fmt"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

// ApplyErrorCode categorizes why an instruction was skipped.
type ApplyErrorCode string

const (
	// ErrCodeNotRecursable: insert target exists and cannot be merged into.
	ErrCodeNotRecursable ApplyErrorCode = "NOT_RECURSABLE"

	// ErrCodeMissingPath: update or delete target does not exist.
	ErrCodeMissingPath ApplyErrorCode = "MISSING_PATH"

	// ErrCodeProtected: a $meta flag forbids the operation.
	ErrCodeProtected ApplyErrorCode = "PROTECTED"

	// ErrCodeRoot: the operation would replace or remove the document root.
	ErrCodeRoot ApplyErrorCode = "ROOT"

	// ErrCodeInvalidPatch: the patch node has a shape the operation rejects.
	ErrCodeInvalidPatch ApplyErrorCode = "INVALID_PATCH"

	// ErrCodeWrite: the tree rejected the write (e.g. array index out of range).
	ErrCodeWrite ApplyErrorCode = "WRITE_FAILED"
)

// ApplyError describes one skipped instruction. Skips are structural, never
// fatal: sibling keys of the skipped node are still processed.
type ApplyError struct {
	Code    ApplyErrorCode
	Op      editlog.Op
	Path    ir.Path
	Message string
}

// Error implements the error interface.
func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s %s %s: %s", e.Code, e.Op, e.Path, e.Message)
}

// IsProtected reports whether err is a protection skip.
func IsProtected(err error) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeProtected
	}
	return false
}

// ParseError describes a malformed instruction block or fragment. The
// offending fragment (or, for an unclosed tag, the whole block) is skipped.
type ParseError struct {
	Kind     Kind
	Offset   int // byte offset of the opening tag in the content
	Fragment int // fragment index inside the block, -1 for block-level errors
	Err      error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Fragment < 0 {
		return fmt.Sprintf("parse <%s> at offset %d: %v", e.Kind, e.Offset, e.Err)
	}
	return fmt.Sprintf("parse <%s> at offset %d, fragment %d: %v", e.Kind, e.Offset, e.Fragment, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error { return e.Err }

// ErrUnclosedTag is wrapped by a ParseError for a block with no closing tag.
var ErrUnclosedTag = errors.New("unclosed instruction tag")
