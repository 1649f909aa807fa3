package resync

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/docsync/internal/anchor"
	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/ledger"
	"github.com/roach88/docsync/internal/patch"
)

// errLaterWrites means commits after the target have logs of their own, so
// reprocessing the target in place would misorder a replay.
var errLaterWrites = errors.New("later commits have logs")

// ApplyDirect brings the ledger up to date after a direct mutation was
// written into the content of the commit at position.
//
// The commit is reprocessed in place: its log is rolled back and its
// content runs through the patch pipeline again, exactly as a resync would
// run it. The result therefore never differs from a later reprocess of the
// same content, whatever order the mutation's block lands in. kind and p
// name the mutation; they are checked against the content, which stays the
// only source of truth.
//
// When the ledger does not hold the commit at position, or later commits
// have logs, ApplyDirect falls back to a directed resync from position.
func (e *Engine) ApplyDirect(ctx context.Context, position int, kind patch.Kind, p ir.IRValue) (Outcome, error) {
	c, id, err := e.anchors.Fetch(ctx, position)
	if err != nil {
		return Outcome{}, err
	}
	if !c.Role.CarriesInstructions() {
		return Outcome{}, &anchor.IdentityError{
			Position: position,
			Err:      fmt.Errorf("role %q does not carry instructions", c.Role),
		}
	}
	if !carries(c.Content, kind, p) {
		e.logger.Warn("direct mutation not found in commit content",
			"commit_id", id,
			"position", position,
			"kind", kind)
	}

	var out Outcome
	err = e.store.Update(ctx, e.scope, func(s *ledger.State) error {
		if position >= len(s.Positions) || s.Positions[position] != id {
			return ErrNotInSequence
		}
		for _, later := range s.Positions[position+1:] {
			if len(s.Logs[later]) > 0 {
				return errLaterWrites
			}
		}

		if err := editlog.Rollback(s.Document, s.Logs[id]); err != nil {
			e.logger.Error("rollback failed",
				"commit_id", id,
				"position", position,
				"error", err)
		}
		prior := make(patch.PriorLogs, 0, position)
		for _, pid := range s.Positions[:position] {
			prior = append(prior, s.Logs[pid])
		}
		s.Logs[id] = e.process(s, c, id, prior)

		out = Outcome{
			Divergence:   position,
			Phases:       []host.Phase{host.PhaseDirectMutation},
			LastID:       id,
			LastPosition: position,
			State:        s.Clone(),
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrNotInSequence), errors.Is(err, errLaterWrites):
		e.logger.Info("direct mutation falls back to resync",
			"commit_id", id,
			"position", position,
			"reason", err)
		return e.Resync(ctx, Directed(position))
	case err != nil:
		return Outcome{}, fmt.Errorf("update ledger: %w", err)
	}
	e.logger.Info("direct mutation applied",
		"commit_id", id,
		"position", position,
		"kind", kind,
		"entries", len(out.State.Logs[id]))
	return out, nil
}

// carries reports whether content holds a fragment of kind equal to p.
func carries(content string, kind patch.Kind, p ir.IRValue) bool {
	in, _ := patch.Parse(content)
	for _, block := range in.Blocks[kind] {
		for _, frag := range block.Fragments {
			if ir.Equal(frag, p) {
				return true
			}
		}
	}
	return false
}

// Claim ensures the commit at position has an identity. A commit that
// never carries instructions and sits right after the recorded sequence is
// recorded with an empty log; anything else is left for the next resync.
func (e *Engine) Claim(ctx context.Context, position int) (Outcome, error) {
	c, id, err := e.anchors.Fetch(ctx, position)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	err = e.store.Update(ctx, e.scope, func(s *ledger.State) error {
		if position == len(s.Positions) && !c.Role.CarriesInstructions() {
			s.Positions = append(s.Positions, id)
			s.Logs[id] = editlog.Log{}
		}
		out = Outcome{
			Divergence:   position,
			LastID:       id,
			LastPosition: position,
			State:        s.Clone(),
		}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("update ledger: %w", err)
	}
	return out, nil
}
