package patch

import (
	"fmt"
	"log/slog"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

// Kind names an instruction kind.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Kinds lists instruction kinds in processing order.
var Kinds = []Kind{KindInsert, KindUpdate, KindDelete}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindInsert, KindUpdate, KindDelete:
		return k, nil
	}
	return "", fmt.Errorf("unknown instruction kind %q", s)
}

// History resolves the value most recently written at a path by commits
// processed before the current one.
type History interface {
	Lookup(path ir.Path) (ir.IRValue, bool)
}

// PriorLogs is a History over earlier commits' logs, oldest first.
type PriorLogs []editlog.Log

// Lookup walks the logs backward and returns the first value that
// determines path.
func (h PriorLogs) Lookup(path ir.Path) (ir.IRValue, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if v, ok := h[i].Lookup(path); ok {
			return v, true
		}
	}
	return nil, false
}

// chained consults the commit's own log before earlier commits.
type chained struct {
	current *editlog.Log
	prior   History
}

func (c chained) Lookup(path ir.Path) (ir.IRValue, bool) {
	if v, ok := c.current.Lookup(path); ok {
		return v, true
	}
	if c.prior == nil {
		return nil, false
	}
	return c.prior.Lookup(path)
}

// Result is the outcome of applying a patch. Document is a fresh tree; the
// input document is never modified.
type Result struct {
	Document ir.IRObject
	Log      editlog.Log
	Skipped  []*ApplyError
}

// Applier applies Insert, Update and Delete patches.
//
// The zero value is not usable; create with NewApplier.
type Applier struct {
	history History
	logger  *slog.Logger
}

// Option configures an Applier.
type Option func(*Applier)

// WithHistory sets the earlier commits Update consults for value_old.
func WithHistory(h History) Option {
	return func(a *Applier) {
		a.history = h
	}
}

// WithLogger sets the logger used for skip diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Applier) {
		a.logger = l
	}
}

// NewApplier creates an Applier.
func NewApplier(opts ...Option) *Applier {
	a := &Applier{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply dispatches patch to the applier for kind.
func (a *Applier) Apply(doc ir.IRObject, kind Kind, patch ir.IRValue) Result {
	r := a.newRun(doc)
	r.apply(kind, patch)
	return r.result()
}

// Insert merges patch into doc without overwriting existing values.
func (a *Applier) Insert(doc ir.IRObject, patch ir.IRValue) Result {
	return a.Apply(doc, KindInsert, patch)
}

// Update replaces existing leaf values.
func (a *Applier) Update(doc ir.IRObject, patch ir.IRValue) Result {
	return a.Apply(doc, KindUpdate, patch)
}

// Delete removes the paths patch names.
func (a *Applier) Delete(doc ir.IRObject, patch ir.IRValue) Result {
	return a.Apply(doc, KindDelete, patch)
}

// run is the mutable state of one application: a private copy of the
// document, the log being built, and the skips collected so far.
type run struct {
	*Applier
	doc     ir.IRObject
	log     editlog.Log
	skipped []*ApplyError
}

func (a *Applier) newRun(doc ir.IRObject) *run {
	if doc == nil {
		doc = ir.IRObject{}
	}
	return &run{Applier: a, doc: ir.CloneObject(doc)}
}

func (r *run) apply(kind Kind, patch ir.IRValue) {
	switch kind {
	case KindInsert:
		r.insertRoot(patch)
	case KindUpdate:
		r.updateRoot(patch)
	case KindDelete:
		r.deleteRoot(patch)
	default:
		r.skip(editlog.Op(kind), ir.RootPath, ErrCodeInvalidPatch, "unknown instruction kind")
	}
}

func (r *run) result() Result {
	return Result{Document: r.doc, Log: r.log, Skipped: r.skipped}
}

func (r *run) record(e editlog.Entry) {
	r.log = append(r.log, e)
}

func (r *run) skip(op editlog.Op, path ir.Path, code ApplyErrorCode, msg string) {
	err := &ApplyError{Code: code, Op: op, Path: path, Message: msg}
	r.skipped = append(r.skipped, err)
	r.logger.Warn("instruction skipped",
		"op", op,
		"path", path.String(),
		"code", code,
		"reason", msg)
}

// lookupOld resolves value_old for an update of path whose current value
// is current.
func (r *run) lookupOld(path ir.Path, current ir.IRValue) ir.IRValue {
	h := chained{current: &r.log, prior: r.history}
	if v, ok := h.Lookup(path); ok && v != nil {
		return ir.Clone(v)
	}
	return ir.Clone(current)
}

// node returns the document node at path, treating the root specially.
func (r *run) node(path ir.Path) (ir.IRValue, bool) {
	if path.IsRoot() {
		return r.doc, true
	}
	return ir.Get(r.doc, path)
}
