package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/docsync/internal/anchor"
	"github.com/roach88/docsync/internal/api"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/ledger"
	"github.com/roach88/docsync/internal/patch"
	"github.com/roach88/docsync/internal/resync"
	"github.com/roach88/docsync/internal/scheduler"
	"github.com/roach88/docsync/internal/testutil"
)

// DefaultIDPrefix prefixes anchor ids generated during a run.
const DefaultIDPrefix = "gen"

// Harness drives one scenario through the real pipeline: an in-memory
// host, the resync engine, the scheduler and the caller API.
//
// Runs are deterministic: ids come from a sequence generator and the
// scheduler sleeps on an auto-advancing clock, so every debounce window
// elapses instantly and in the same order on every run.
//
// Thread-safety: Not safe for concurrent use. The scheduler runs each
// batch on the submitting goroutine, so completions arrive synchronously.
type Harness struct {
	host   *host.Memory
	store  ledger.Store
	scope  string
	sched  *scheduler.Scheduler
	api    *api.API
	clock  *testutil.ManualClock
	logger *slog.Logger

	result *Result
	step   int
	events []host.Event
	errs   []error
}

type options struct {
	logger *slog.Logger
	store  ledger.Store
	config scheduler.Config
}

// Option configures a run.
type Option func(*options)

// WithLogger sets the logger (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStore runs against st instead of a fresh in-memory ledger.
func WithStore(st ledger.Store) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithConfig sets the scheduler timing (default scheduler.DefaultConfig).
func WithConfig(c scheduler.Config) Option {
	return func(o *options) {
		o.config = c
	}
}

// Run executes a scenario and returns the result.
//
// An error means the scenario could not be executed (a host action failed
// or the ledger could not be read); failed assertions are reported in the
// result instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger: testutil.DiscardLogger(),
		config: scheduler.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = ledger.NewMemoryStore()
	}

	h := newHarness(scenario, o)
	for i, st := range scenario.Steps {
		h.step = i
		if err := h.runStep(ctx, st); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	st, err := h.store.Load(ctx, h.scope)
	if err != nil {
		return nil, fmt.Errorf("load final ledger: %w", err)
	}
	h.result.State = FinalState{
		Document:  st.Document,
		Positions: st.Positions,
		Logs:      st.Logs,
	}

	actx := &AssertionContext{Ctx: ctx, API: h.api}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func newHarness(scenario *Scenario, o options) *Harness {
	scope := scenario.Scope
	if scope == "" {
		scope = scenario.Name
	}
	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}

	mem := host.NewMemory()
	seed := make([]host.Commit, len(scenario.Commits))
	for i, c := range scenario.Commits {
		seed[i] = host.Commit{Role: host.Role(c.Role), Content: anchored(c.Content, c.ID)}
	}
	mem.Seed(seed...)

	h := &Harness{
		host:   mem,
		store:  o.store,
		scope:  scope,
		clock:  testutil.NewAutoClock(time.Time{}),
		logger: o.logger,
		result: NewResult(),
	}
	mem.Subscribe(func(e host.Event) {
		h.events = append(h.events, e)
	})

	anchors := anchor.New(mem, anchor.NewSequenceGenerator(prefix), o.logger)
	engine := resync.New(mem, o.store, anchors,
		resync.WithLogger(o.logger),
		resync.WithScope(scope))
	h.sched = scheduler.New(engine, host.NotifierFunc(h.notify),
		scheduler.WithClock(h.clock),
		scheduler.WithConfig(o.config),
		scheduler.WithLogger(o.logger))
	h.api = api.New(mem, h, o.store, scope, api.WithLogger(o.logger))
	return h
}

func anchored(content, id string) string {
	if id == "" {
		return content
	}
	return anchor.Inject(content, id)
}

// runStep performs st. Steps under With are performed at the first sleep
// of st's debounce window, so their jobs join st's batch.
func (h *Harness) runStep(ctx context.Context, st Step) error {
	if len(st.With) > 0 {
		var once sync.Once
		h.clock.OnSleep = func(time.Duration) {
			once.Do(func() {
				for _, w := range st.With {
					if err := h.perform(ctx, w); err != nil {
						h.errs = append(h.errs, err)
					}
				}
			})
		}
		defer func() { h.clock.OnSleep = nil }()
	}

	if err := h.perform(ctx, st); err != nil {
		return err
	}
	if len(h.errs) > 0 {
		err := h.errs[0]
		h.errs = nil
		return fmt.Errorf("with: %w", err)
	}
	return nil
}

// perform applies one host action, then submits the triggers the host
// published for it.
func (h *Harness) perform(ctx context.Context, st Step) error {
	h.events = nil
	pos := -1
	if st.Position != nil {
		pos = *st.Position
	}

	var err error
	switch st.Action {
	case "":
		h.Submit(ctx, scheduler.NewJob(scheduler.Trigger(st.Trigger), pos))
		return nil
	case ActionMutate:
		return h.mutate(ctx, st.Mutation)
	case ActionAppend:
		h.host.Append(host.Role(st.Role), anchored(st.Content, st.ID))
	case ActionEdit:
		err = h.host.Edit(pos, st.Content)
	case ActionDelete:
		err = h.host.Delete(pos)
	case ActionSwipe:
		err = h.host.Swipe(pos, st.Content)
	case ActionSwitch:
		err = h.host.SwitchVariant(pos, st.Variant)
	case ActionEcho:
		err = h.host.Echo(pos)
	default:
		err = fmt.Errorf("unknown action %q", st.Action)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", st.Action, err)
	}

	events := h.events
	h.events = nil
	for _, e := range events {
		h.Submit(ctx, scheduler.FromEvent(e))
	}
	return nil
}

func (h *Harness) mutate(ctx context.Context, m *MutationSpec) error {
	kind, err := patch.ParseKind(m.Op)
	if err != nil {
		return err
	}

	if m.Path != "" {
		if kind == patch.KindDelete {
			_, err = h.api.DeleteByPath(ctx, m.Path)
			return err
		}
		v, err := ir.FromAny(m.Value)
		if err != nil {
			return fmt.Errorf("mutation value: %w", err)
		}
		if kind == patch.KindInsert {
			_, err = h.api.InsertByPath(ctx, m.Path, v)
		} else {
			_, err = h.api.UpdateByPath(ctx, m.Path, v)
		}
		return err
	}

	v, err := ir.FromAny(m.Object)
	if err != nil {
		return fmt.Errorf("mutation object: %w", err)
	}
	obj := v.(ir.IRObject)
	switch kind {
	case patch.KindInsert:
		_, err = h.api.InsertByObject(ctx, obj)
	case patch.KindUpdate:
		_, err = h.api.UpdateByObject(ctx, obj)
	default:
		_, err = h.api.DeleteByObject(ctx, obj)
	}
	return err
}

// Submit implements api.Submitter, recording the job in the trace.
func (h *Harness) Submit(ctx context.Context, j scheduler.Job) scheduler.Admission {
	i := h.result.addSubmit(h.step, j.String())
	adm := h.sched.Submit(ctx, j)
	h.result.Trace[i].Admission = adm.String()
	return adm
}

func (h *Harness) notify(_ context.Context, c host.Completion) {
	h.result.addCompletion(h.step, c)
}
