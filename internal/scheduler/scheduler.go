package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/docsync/internal/anchor"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/patch"
	"github.com/roach88/docsync/internal/resync"
)

// Reconciler is the pipeline a job is routed to. *resync.Engine
// implements it.
type Reconciler interface {
	Scope() string
	Resync(ctx context.Context, opts resync.Options) (resync.Outcome, error)
	ApplyDirect(ctx context.Context, position int, kind patch.Kind, p ir.IRValue) (resync.Outcome, error)
	Claim(ctx context.Context, position int) (resync.Outcome, error)
}

// State is the scheduler's lifecycle state.
type State int

const (
	// StateIdle: nothing queued, nothing running.
	StateIdle State = iota
	// StateCollecting: a debounce window is open.
	StateCollecting
	// StateProcessing: a batch is running and no caller waits.
	StateProcessing
	// StateWaiting: a batch is running and one caller waits to run next.
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateProcessing:
		return "processing"
	case StateWaiting:
		return "waiting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Admission is what Submit did with its caller.
type Admission int

const (
	// Queued: a debounce window was open; the collector will run the job.
	Queued Admission = iota
	// Started: the caller opened the window and ran the batch.
	Started
	// Waited: the caller waited for the running batch, then ran the next.
	Waited
	// Dropped: another caller was already waiting. The job stays queued
	// and runs with the waiter's batch.
	Dropped
)

func (a Admission) String() string {
	switch a {
	case Queued:
		return "queued"
	case Started:
		return "started"
	case Waited:
		return "waited"
	case Dropped:
		return "dropped"
	}
	return fmt.Sprintf("Admission(%d)", int(a))
}

// Scheduler serializes triggers into one pipeline: debounce, merge, then
// run jobs strictly in order, one batch at a time.
//
// CRITICAL: the scheduler's single-flight lock is the only thing that keeps
// two jobs from interleaving their read-modify-write of the ledger. Every
// job must go through Submit.
//
// Thread-safety: Submit, Trigger and Attach are safe for concurrent use.
type Scheduler struct {
	rec      Reconciler
	notifier host.Notifier
	clock    Clock
	config   Config
	rules    Rules
	metrics  *Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	queue  []Job
	waiter chan struct{}

	pending sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock (default SystemClock).
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithConfig sets the timing (default DefaultConfig). The merge interval of
// the default rules follows it.
func WithConfig(c Config) Option {
	return func(s *Scheduler) {
		s.config = c
		s.rules.Interval = c.MergeInterval
	}
}

// WithRules replaces the merge rules.
func WithRules(r Rules) Option {
	return func(s *Scheduler) {
		s.rules = r
	}
}

// WithMetrics records into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New creates a Scheduler routing jobs to rec and completions to notifier.
// Without WithMetrics the collectors go to a private registry.
func New(rec Reconciler, notifier host.Notifier, opts ...Option) *Scheduler {
	cfg := DefaultConfig()
	s := &Scheduler{
		rec:      rec,
		notifier: notifier,
		clock:    SystemClock{},
		config:   cfg,
		rules:    DefaultRules(cfg.MergeInterval),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return s
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateProcessing && s.waiter != nil {
		return StateWaiting
	}
	return s.state
}

// Submit queues j and tries to start the pipeline.
//
// Submit blocks while its caller runs a batch or waits to run the next one.
// It never returns an error: job failures are logged and absorbed, because
// a failure reaching the trigger source would leave every later job working
// on a ledger that no longer matches the host.
func (s *Scheduler) Submit(ctx context.Context, j Job) Admission {
	s.mu.Lock()
	if j.At.IsZero() {
		j.At = s.clock.Now()
	}
	s.queue = append(s.queue, j)
	s.metrics.QueueDepth.Set(float64(len(s.queue)))

	switch s.state {
	case StateCollecting:
		s.mu.Unlock()
		s.logger.Debug("job queued", "job", j.String())
		return Queued

	case StateProcessing:
		if s.waiter != nil {
			s.mu.Unlock()
			s.metrics.Dropped.Inc()
			s.logger.Debug("caller dropped", "job", j.String())
			return Dropped
		}
		w := make(chan struct{})
		s.waiter = w
		s.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			s.mu.Lock()
			if s.waiter == w {
				// Not handed off yet: the running batch will pick the job up.
				s.waiter = nil
				s.mu.Unlock()
				return Dropped
			}
			s.mu.Unlock()
		}
		s.run(ctx)
		return Waited

	default:
		s.state = StateCollecting
		s.mu.Unlock()
		s.run(ctx)
		return Started
	}
}

// Trigger submits the job for a host event.
func (s *Scheduler) Trigger(ctx context.Context, e host.Event) Admission {
	return s.Submit(ctx, FromEvent(e))
}

// Attach subscribes to bus. Each event is submitted from its own goroutine
// so the host's publisher never blocks on a debounce window.
// Call the returned func to unsubscribe; Wait blocks until the submitted
// events have been handled.
func (s *Scheduler) Attach(ctx context.Context, bus host.Bus) (cancel func()) {
	return bus.Subscribe(func(e host.Event) {
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			s.Trigger(ctx, e)
		}()
	})
}

// Wait blocks until every event delivered through Attach has returned from
// Submit.
func (s *Scheduler) Wait() {
	s.pending.Wait()
}

// run owns the pipeline from Collecting until it hands off or goes idle.
//
// CRITICAL: jobs run on a context detached from the caller's cancellation.
// A job always runs to completion; stopping halfway through a rollback or
// replay would corrupt the ledger.
func (s *Scheduler) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for {
		s.collect(ctx)

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.state = StateProcessing
		s.metrics.QueueDepth.Set(0)
		s.mu.Unlock()

		jobs, rep := Merge(batch, s.rules)
		s.metrics.observeMerge(rep)
		s.logger.Debug("batch merged",
			"drained", len(batch),
			"jobs", len(jobs),
			"combined", rep.Combined,
			"collided", rep.Collided,
			"coalesced", rep.Coalesced,
			"orphaned", rep.Orphaned)

		for _, j := range jobs {
			s.execute(ctx, j)
			if err := s.clock.Sleep(ctx, s.config.Throttle); err != nil {
				s.logger.Warn("throttle interrupted", "error", err)
			}
		}

		s.mu.Lock()
		switch {
		case s.waiter != nil:
			close(s.waiter)
			s.waiter = nil
			s.state = StateCollecting
			s.mu.Unlock()
			return
		case len(s.queue) > 0:
			// A waiter gave up while jobs were running; its job is still
			// here.
			s.state = StateCollecting
			s.mu.Unlock()
		default:
			s.state = StateIdle
			s.mu.Unlock()
			return
		}
	}
}

// collect holds the debounce window open. The window is the longest window
// of any queued trigger and ends early once an urgent combination is
// queued.
func (s *Scheduler) collect(ctx context.Context) {
	start := s.clock.Now()
	urgent, err := Poll(ctx, s.clock, s.config.PollInterval, s.config.MaxWait, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.rules.Urgent(s.queue) || s.clock.Now().Sub(start) >= s.config.window(s.queue)
	})
	if err != nil {
		s.logger.Warn("debounce interrupted", "error", err)
	}
	s.logger.Debug("debounce closed",
		"waited", s.clock.Now().Sub(start),
		"early", urgent)
}

// execute runs one job and reports its completion. A panic or error is
// logged and absorbed so the next job still runs.
func (s *Scheduler) execute(ctx context.Context, j Job) {
	group := string(j.Group)
	log := s.logger.With("job", j.String(), "scope", s.rec.Scope())
	start := s.clock.Now()

	defer func() {
		s.metrics.JobDuration.WithLabelValues(group).Observe(s.clock.Now().Sub(start).Seconds())
		if r := recover(); r != nil {
			s.metrics.JobsFailed.WithLabelValues(group).Inc()
			log.Error("job panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	s.metrics.JobsProcessed.WithLabelValues(group).Inc()
	out, err := s.dispatch(ctx, j)
	if err != nil {
		s.metrics.JobsFailed.WithLabelValues(group).Inc()
		var idErr *anchor.IdentityError
		if errors.As(err, &idErr) {
			log.Warn("job aborted: identity check failed", "error", err)
			return
		}
		log.Error("job failed", "error", err)
		return
	}

	s.notifier.Notify(ctx, s.completion(out))
	log.Info("job complete",
		"phases", out.Phases,
		"last_id", out.LastID,
		"last_position", out.LastPosition)
}

// dispatch routes a job by group.
func (s *Scheduler) dispatch(ctx context.Context, j Job) (resync.Outcome, error) {
	switch j.Group {
	case GroupInit, GroupFull:
		return s.rec.Resync(ctx, resync.Full())

	case GroupDirected:
		if j.Position < 0 {
			return s.rec.Resync(ctx, resync.Full())
		}
		return s.rec.Resync(ctx, resync.Directed(j.Position))

	case GroupTargeted:
		if j.Position < 0 {
			return s.rec.Resync(ctx, resync.Full())
		}
		return s.rec.Resync(ctx, resync.Targeted(j.Position))

	case GroupMutation:
		if j.Patch == nil {
			return resync.Outcome{}, fmt.Errorf("mutation job without a patch")
		}
		return s.rec.ApplyDirect(ctx, j.Position, j.Kind, j.Patch)

	case GroupIdentity:
		if j.Position < 0 {
			return s.rec.Resync(ctx, resync.Full())
		}
		return s.rec.Claim(ctx, j.Position)

	default:
		return resync.Outcome{}, fmt.Errorf("no route for group %q", j.Group)
	}
}

// completion builds the notification for one outcome.
func (s *Scheduler) completion(out resync.Outcome) host.Completion {
	c := host.Completion{
		Scope:        s.rec.Scope(),
		LastID:       out.LastID,
		LastPosition: out.LastPosition,
		Phases:       out.Phases,
	}
	if out.State != nil {
		c.Positions = out.State.Positions
		c.Logs = out.State.Logs
		c.Document = out.State.Document
		c.Stripped = ir.StripMeta(out.State.Document)
	}
	return c
}
