package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/ledger"
	"github.com/roach88/docsync/internal/patch"
	"github.com/roach88/docsync/internal/scheduler"
	"github.com/roach88/docsync/internal/snapshot"
)

// ErrNoTarget is returned when no commit can carry a direct mutation.
var ErrNoTarget = errors.New("no commit carries instructions")

// Submitter accepts jobs. *scheduler.Scheduler implements it.
type Submitter interface {
	Submit(ctx context.Context, j scheduler.Job) scheduler.Admission
}

// Mutation describes one direct write.
type Mutation struct {
	Position  int                 `json:"position"`
	Kind      patch.Kind          `json:"kind"`
	Patch     ir.IRValue          `json:"patch"`
	Block     string              `json:"block"`
	Admission scheduler.Admission `json:"-"`
}

// API is the caller surface: direct mutations and snapshot queries over
// one scope.
//
// A direct mutation never touches the document itself. It writes an
// instruction block into the newest commit that may carry instructions
// and submits a mutation job, so the write survives any later replay of
// that commit.
type API struct {
	commits host.CommitStore
	sched   Submitter
	store   ledger.Store
	scope   string
	logger  *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		a.logger = l
	}
}

// New creates an API over scope.
func New(commits host.CommitStore, sched Submitter, store ledger.Store, scope string, opts ...Option) *API {
	a := &API{
		commits: commits,
		sched:   sched,
		store:   store,
		scope:   scope,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// InsertByPath inserts value at the dotted path.
func (a *API) InsertByPath(ctx context.Context, path string, value ir.IRValue) (Mutation, error) {
	p, err := nest(path, value)
	if err != nil {
		return Mutation{}, err
	}
	return a.mutate(ctx, patch.KindInsert, p)
}

// InsertByObject inserts every leaf of obj.
func (a *API) InsertByObject(ctx context.Context, obj ir.IRObject) (Mutation, error) {
	return a.mutate(ctx, patch.KindInsert, obj)
}

// UpdateByPath updates the value at the dotted path.
func (a *API) UpdateByPath(ctx context.Context, path string, value ir.IRValue) (Mutation, error) {
	p, err := nest(path, value)
	if err != nil {
		return Mutation{}, err
	}
	return a.mutate(ctx, patch.KindUpdate, p)
}

// UpdateByObject updates every leaf of obj.
func (a *API) UpdateByObject(ctx context.Context, obj ir.IRObject) (Mutation, error) {
	return a.mutate(ctx, patch.KindUpdate, obj)
}

// DeleteByPath deletes the node at the dotted path.
func (a *API) DeleteByPath(ctx context.Context, path string) (Mutation, error) {
	p, err := nest(path, ir.IRNull{})
	if err != nil {
		return Mutation{}, err
	}
	return a.mutate(ctx, patch.KindDelete, p)
}

// DeleteByObject deletes every node obj names: a scalar leaf deletes that
// key, a non-empty map or list descends.
func (a *API) DeleteByObject(ctx context.Context, obj ir.IRObject) (Mutation, error) {
	return a.mutate(ctx, patch.KindDelete, obj)
}

// nest wraps value in one map per path segment.
func nest(path string, value ir.IRValue) (ir.IRObject, error) {
	segs := ir.ParsePath(path)
	if segs.IsRoot() {
		return nil, fmt.Errorf("path %q: the document root cannot be addressed", path)
	}
	v := ir.Clone(value)
	for i := len(segs) - 1; i >= 0; i-- {
		v = ir.IRObject{segs[i]: v}
	}
	return v.(ir.IRObject), nil
}

func (a *API) mutate(ctx context.Context, kind patch.Kind, p ir.IRObject) (Mutation, error) {
	if len(p) == 0 {
		return Mutation{}, fmt.Errorf("%s: empty patch", kind)
	}
	block, err := patch.Render(kind, p)
	if err != nil {
		return Mutation{}, err
	}

	target, err := a.target(ctx)
	if err != nil {
		return Mutation{}, err
	}
	content := target.Content + "\n" + block
	if err := a.commits.SetContent(ctx, target.Position, content); err != nil {
		return Mutation{}, fmt.Errorf("write block to commit %d: %w", target.Position, err)
	}

	m := Mutation{Position: target.Position, Kind: kind, Patch: p, Block: block}
	m.Admission = a.sched.Submit(ctx, scheduler.MutationJob(target.Position, kind, p))
	a.logger.Info("direct mutation submitted",
		"scope", a.scope,
		"position", m.Position,
		"kind", kind,
		"admission", m.Admission.String())
	return m, nil
}

// target returns the newest commit that may carry instructions.
func (a *API) target(ctx context.Context) (host.Commit, error) {
	commits, err := host.All(ctx, a.commits)
	if err != nil {
		return host.Commit{}, fmt.Errorf("read commits: %w", err)
	}
	for i := len(commits) - 1; i >= 0; i-- {
		if commits[i].Role.CarriesInstructions() {
			return commits[i], nil
		}
	}
	return host.Commit{}, ErrNoTarget
}

// Document returns the current document.
func (a *API) Document(ctx context.Context) (ir.IRObject, error) {
	s, err := a.store.Load(ctx, a.scope)
	if err != nil {
		return nil, err
	}
	return s.Document, nil
}

// SnapshotByID returns the document as of the commit with id.
func (a *API) SnapshotByID(ctx context.Context, id string) (snapshot.Snapshot, error) {
	s, err := a.store.Load(ctx, a.scope)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	doc, err := snapshot.StateAt(s.Positions, s.Logs, id)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.Snapshot{ID: id, Position: s.PositionOf(id), Document: doc}, nil
}

// SnapshotAt returns the document as of the commit at position.
func (a *API) SnapshotAt(ctx context.Context, position int) (snapshot.Snapshot, error) {
	s, err := a.store.Load(ctx, a.scope)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	doc, err := snapshot.StateAtPosition(s.Positions, s.Logs, position)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	snap := snapshot.Snapshot{Position: position, Document: doc}
	if position >= 0 {
		snap.ID = s.Positions[position]
	}
	return snap, nil
}

// SnapshotsBetween returns one snapshot per commit from id a to id b.
func (a *API) SnapshotsBetween(ctx context.Context, from, to string) ([]snapshot.Snapshot, error) {
	s, err := a.store.Load(ctx, a.scope)
	if err != nil {
		return nil, err
	}
	return snapshot.AllStatesBetween(s.Positions, s.Logs, from, to)
}

// SnapshotsBetweenPositions returns one snapshot per commit from position
// from to position to, inclusive.
func (a *API) SnapshotsBetweenPositions(ctx context.Context, from, to int) ([]snapshot.Snapshot, error) {
	s, err := a.store.Load(ctx, a.scope)
	if err != nil {
		return nil, err
	}
	for _, p := range []int{from, to} {
		if p < 0 || p >= len(s.Positions) {
			return nil, fmt.Errorf("position %d: %w", p, snapshot.ErrUnknownID)
		}
	}
	return snapshot.AllStatesBetween(s.Positions, s.Logs, s.Positions[from], s.Positions[to])
}
