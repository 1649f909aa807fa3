package resync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/docsync/internal/anchor"
	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ledger"
	"github.com/roach88/docsync/internal/patch"
)

// ErrNotInSequence is returned when a direct mutation targets a commit the
// recorded position sequence does not hold at that position.
var ErrNotInSequence = errors.New("commit not at its recorded position")

// Options narrows a resync.
type Options struct {
	// From forces reprocessing from this position even if the ids up to it
	// are unchanged. -1 leaves divergence to the sequence comparison.
	From int

	// StopAt ends replay before this position; it and later commits are
	// treated as not yet present. -1 replays to the end.
	StopAt int
}

// Full is a resync of the whole sequence.
func Full() Options { return Options{From: -1, StopAt: -1} }

// Directed reprocesses from position onward.
func Directed(position int) Options { return Options{From: position, StopAt: -1} }

// Targeted rolls back from position and replays up to, not including, it.
// Used when the commit at position is about to be regenerated.
func Targeted(position int) Options { return Options{From: position, StopAt: position} }

// Outcome describes what one resync did.
type Outcome struct {
	Divergence   int
	NoOp         bool
	FastPath     bool
	RolledBack   []string // ids, in the order they were rolled back
	Replayed     []string // ids, in position order
	Phases       []host.Phase
	LastID       string
	LastPosition int
	State        *ledger.State
}

// Engine realigns the ledger of one scope with the host's commit list.
//
// CRITICAL: Engine performs no locking of its own. Every call reads, then
// rewrites the ledger through Store.Update; callers must serialize calls
// (the scheduler's single-flight lock does).
type Engine struct {
	commits host.CommitStore
	store   ledger.Store
	anchors *anchor.Anchorer
	scope   string
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithScope sets the ledger scope (default "default").
func WithScope(scope string) EngineOption {
	return func(e *Engine) {
		e.scope = scope
	}
}

// New creates an Engine.
func New(commits host.CommitStore, store ledger.Store, anchors *anchor.Anchorer, opts ...EngineOption) *Engine {
	e := &Engine{
		commits: commits,
		store:   store,
		anchors: anchors,
		scope:   "default",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scope returns the ledger scope the engine maintains.
func (e *Engine) Scope() string { return e.scope }

// Load returns the current ledger state.
func (e *Engine) Load(ctx context.Context) (*ledger.State, error) {
	return e.store.Load(ctx, e.scope)
}

// Resync brings the ledger in line with the current commit list: detect
// divergence, roll back the stale tail newest first, replay forward, and
// persist the new position sequence.
//
// Identities are ensured (anchors written to the host) before the ledger
// transform runs, so the transform itself performs no host I/O.
func (e *Engine) Resync(ctx context.Context, opts Options) (Outcome, error) {
	all, err := host.All(ctx, e.commits)
	if err != nil {
		return Outcome{}, fmt.Errorf("read commits: %w", err)
	}
	if len(all) == 0 {
		e.logger.Debug("resync skipped: no commits")
		return Outcome{NoOp: true, LastPosition: -1}, nil
	}

	current := all
	if opts.StopAt >= 0 && opts.StopAt < len(all) {
		current = all[:opts.StopAt]
	}

	ids, err := e.ensureAll(ctx, current)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	err = e.store.Update(ctx, e.scope, func(s *ledger.State) error {
		out = e.resync(s, current, ids, opts)
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("update ledger: %w", err)
	}
	return out, nil
}

// ensureAll returns the id of every commit, anchoring those without one.
// A commit repeating an id already seen earlier in the list is given a
// fresh one, so an id maps to at most one commit.
func (e *Engine) ensureAll(ctx context.Context, commits []host.Commit) ([]string, error) {
	ids := make([]string, len(commits))
	seen := make(map[string]int, len(commits))
	for i := range commits {
		c := &commits[i]
		id, err := e.anchors.Ensure(ctx, c)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[id]; dup {
			e.logger.Warn("duplicate anchor",
				"commit_id", id,
				"position", c.Position,
				"first_position", first)
			if id, err = e.anchors.Reanchor(ctx, c); err != nil {
				return nil, err
			}
		}
		seen[id] = c.Position
		ids[i] = id
	}
	return ids, nil
}

// resync is the pure ledger transform behind Resync.
func (e *Engine) resync(s *ledger.State, commits []host.Commit, ids []string, opts Options) Outcome {
	plan := Diverge(ids, s.Positions, s.Logs, opts.From)
	out := Outcome{Divergence: plan.Divergence, NoOp: plan.NoOp, FastPath: plan.FastPath}

	switch {
	case plan.NoOp:
		e.logger.Debug("resync no-op", "positions", len(ids))
		return e.finish(out, s)

	case plan.FastPath:
		s.Positions = append([]string(nil), ids...)
		prune(s)
		out.Phases = []host.Phase{host.PhaseResync}
		e.logger.Info("resync fast path", "positions", len(ids))
		return e.finish(out, s)
	}

	// Rollback phase: newest first. A later commit may have written a path
	// an earlier stale commit also wrote; undoing out of order would
	// restore the wrong value_old.
	d := plan.Divergence
	stale := s.Positions[min(d, len(s.Positions)):]
	for i := len(stale) - 1; i >= 0; i-- {
		id := stale[i]
		log := s.Logs[id]
		if len(log) == 0 {
			continue
		}
		if err := editlog.Rollback(s.Document, log); err != nil {
			e.logger.Error("rollback failed",
				"commit_id", id,
				"position", d+i,
				"error", err)
		}
		delete(s.Logs, id)
		out.RolledBack = append(out.RolledBack, id)
	}

	// Replay phase: every position from the divergence to the end gets a
	// fresh log, built on the logs of the positions before it.
	positions := append([]string(nil), ids[:d]...)
	prior := make(patch.PriorLogs, 0, len(ids))
	for _, id := range positions {
		prior = append(prior, s.Logs[id])
	}
	for pos := d; pos < len(commits); pos++ {
		id := ids[pos]
		log := e.process(s, commits[pos], id, prior)
		s.Logs[id] = log
		prior = append(prior, log)
		positions = append(positions, id)
		out.Replayed = append(out.Replayed, id)
	}
	s.Positions = positions
	prune(s)

	out.Phases = []host.Phase{host.PhaseResync}
	if len(out.RolledBack) > 0 {
		out.Phases = append(out.Phases, host.PhaseRollback)
	}
	if len(out.Replayed) > 0 {
		out.Phases = append(out.Phases, host.PhaseApply)
		out.LastID = out.Replayed[len(out.Replayed)-1]
		out.LastPosition = d + len(out.Replayed) - 1
	}

	e.logger.Info("resync complete",
		"divergence", d,
		"rolled_back", len(out.RolledBack),
		"replayed", len(out.Replayed),
		"positions", len(positions))
	return e.finish(out, s)
}

// process runs one commit through the patch pipeline and returns its fresh
// log. Commits whose role never carries instructions get an empty log but
// still occupy their position.
func (e *Engine) process(s *ledger.State, c host.Commit, id string, prior patch.PriorLogs) editlog.Log {
	if !c.Role.CarriesInstructions() {
		return editlog.Log{}
	}
	applier := patch.NewApplier(
		patch.WithHistory(prior),
		patch.WithLogger(e.logger.With("commit_id", id, "position", c.Position)))
	res := applier.ProcessCommit(s.Document, c.Content)
	s.Document = res.Document
	if res.Log == nil {
		return editlog.Log{}
	}
	return res.Log
}

// finish fills the fields every outcome carries.
func (e *Engine) finish(out Outcome, s *ledger.State) Outcome {
	if out.LastID == "" {
		out.LastID = s.LastID()
		out.LastPosition = len(s.Positions) - 1
	}
	out.State = s.Clone()
	return out
}

// prune drops logs of ids no longer in the position sequence.
func prune(s *ledger.State) {
	present := make(map[string]bool, len(s.Positions))
	for _, id := range s.Positions {
		present[id] = true
	}
	for id := range s.Logs {
		if !present[id] {
			delete(s.Logs, id)
		}
	}
}
