package patch

import (
	"github.com/roach88/docsync/internal/ir"
)

// CommitResult is the outcome of processing one commit's content.
type CommitResult struct {
	Result
	ParseErrors []error
}

// ProcessCommit parses content and applies every instruction in it to doc.
//
// CRITICAL: all insert blocks run first, then update, then delete; blocks
// of one kind run in source order and each sees the effect of the previous
// one. The log is therefore inserts ++ updates ++ deletes regardless of how
// the blocks are interleaved in the text.
func (a *Applier) ProcessCommit(doc ir.IRObject, content string) CommitResult {
	in, parseErrs := Parse(content)
	for _, err := range parseErrs {
		a.logger.Warn("malformed instruction skipped", "error", err)
	}

	r := a.newRun(doc)
	for _, kind := range Kinds {
		for _, block := range in.Blocks[kind] {
			for _, frag := range block.Fragments {
				r.apply(kind, frag)
			}
		}
	}
	return CommitResult{Result: r.result(), ParseErrors: parseErrs}
}
