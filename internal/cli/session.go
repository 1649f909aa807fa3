package cli

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/docsync/internal/anchor"
	"github.com/roach88/docsync/internal/api"
	"github.com/roach88/docsync/internal/config"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ledger"
	"github.com/roach88/docsync/internal/resync"
	"github.com/roach88/docsync/internal/scheduler"
	"github.com/roach88/docsync/internal/store"
)

// session is the pipeline over one database scope: the hosted commit
// list, the resync engine, the scheduler and the caller API.
//
// The CLI hosts its own commits, so nothing publishes triggers; commands
// submit the job a live host would have raised for their change. Submit
// runs the batch on the calling goroutine, so a command's job has
// finished, and its completion is recorded, when submit returns.
type session struct {
	cfg    config.Config
	store  *store.Store
	host   *store.Host
	engine *resync.Engine
	sched  *scheduler.Scheduler
	api    *api.API
	logger *slog.Logger

	completions []host.Completion
}

// loadConfig reads the config file and applies the --db and --scope
// overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.Scope != "" {
		cfg.Scope = opts.Scope
	}
	return cfg, nil
}

func openSession(opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.DB == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set db in the config file")
	}

	logger := opts.Logger()
	logger.Debug("opening database", "path", cfg.DB, "scope", cfg.Scope)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	s := &session{
		cfg:    cfg,
		store:  st,
		host:   st.Host(cfg.Scope, logger),
		logger: logger,
	}

	opts.registry = prometheus.NewRegistry()
	anchors := anchor.New(s.host, anchor.UUIDv7Generator{}, logger)
	s.engine = resync.New(s.host, st, anchors,
		resync.WithLogger(logger),
		resync.WithScope(cfg.Scope))
	s.sched = scheduler.New(s.engine, host.NotifierFunc(s.notify),
		scheduler.WithConfig(cfg.Scheduler),
		scheduler.WithMetrics(scheduler.NewMetrics(opts.registry)),
		scheduler.WithLogger(logger))
	s.api = api.New(s.host, s.sched, st, cfg.Scope, api.WithLogger(logger))
	return s, nil
}

// notify records c in the database and keeps it for the command's output.
func (s *session) notify(ctx context.Context, c host.Completion) {
	s.completions = append(s.completions, c)
	s.host.Notify(ctx, c)
}

// submit queues a job and returns the completions it produced.
func (s *session) submit(ctx context.Context, j scheduler.Job) []host.Completion {
	before := len(s.completions)
	adm := s.sched.Submit(ctx, j)
	s.logger.Debug("job submitted", "job", j.String(), "admission", adm.String())
	return s.completions[before:]
}

// state loads the ledger of the session's scope.
func (s *session) state(ctx context.Context) (*ledger.State, error) {
	st, err := s.store.Load(ctx, s.cfg.Scope)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load ledger", err)
	}
	return st, nil
}

func (s *session) Close() error {
	return s.store.Close()
}
