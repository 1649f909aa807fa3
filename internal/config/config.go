package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docsync/internal/scheduler"
)

//go:embed schema.cue
var schemaSource string

// DefaultScope is the ledger scope used when none is configured.
const DefaultScope = "default"

// Config is the effective docsync configuration.
type Config struct {
	Scope     string
	DB        string
	Scheduler scheduler.Config
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scope:     DefaultScope,
		Scheduler: scheduler.DefaultConfig(),
	}
}

// file is the on-disk shape. Durations are strings ("250ms", "2s"); an
// absent field keeps its default.
type file struct {
	Scope     string         `json:"scope,omitempty" yaml:"scope,omitempty"`
	DB        string         `json:"db,omitempty" yaml:"db,omitempty"`
	Scheduler *schedulerFile `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
}

type schedulerFile struct {
	Debounce        string            `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	TriggerDebounce map[string]string `json:"trigger_debounce,omitempty" yaml:"trigger_debounce,omitempty"`
	PollInterval    string            `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	MaxWait         string            `json:"max_wait,omitempty" yaml:"max_wait,omitempty"`
	Throttle        string            `json:"throttle,omitempty" yaml:"throttle,omitempty"`
	MergeInterval   string            `json:"merge_interval,omitempty" yaml:"merge_interval,omitempty"`
}

// Error is a configuration error, with a source position when the CUE
// evaluator reports one.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a .yaml, .yml or .cue file over the defaults. An empty path
// returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var f file
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		f, err = decodeYAML(data)
	case ".cue":
		f, err = decodeCUE(path, data)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return Config{}, err
	}
	return f.apply(Default())
}

func decodeYAML(data []byte) (file, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return file{}, fmt.Errorf("parse yaml config: %w", err)
	}
	return f, nil
}

// decodeCUE evaluates data against the #Config schema. CUE catches type
// errors, unknown fields and malformed durations before anything is
// decoded.
func decodeCUE(path string, data []byte) (file, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return file{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return file{}, formatCUEError(err)
	}
	u := schema.Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return file{}, formatCUEError(err)
	}

	var f file
	if err := u.Decode(&f); err != nil {
		return file{}, formatCUEError(err)
	}
	return f, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// apply overlays f on base and validates the result.
func (f file) apply(base Config) (Config, error) {
	c := base
	if f.Scope != "" {
		c.Scope = f.Scope
	}
	if f.DB != "" {
		c.DB = f.DB
	}

	if s := f.Scheduler; s != nil {
		fields := []struct {
			name string
			raw  string
			dst  *time.Duration
		}{
			{"debounce", s.Debounce, &c.Scheduler.Debounce},
			{"poll_interval", s.PollInterval, &c.Scheduler.PollInterval},
			{"max_wait", s.MaxWait, &c.Scheduler.MaxWait},
			{"throttle", s.Throttle, &c.Scheduler.Throttle},
			{"merge_interval", s.MergeInterval, &c.Scheduler.MergeInterval},
		}
		for _, fd := range fields {
			if fd.raw == "" {
				continue
			}
			d, err := time.ParseDuration(fd.raw)
			if err != nil {
				return Config{}, &Error{Field: "scheduler." + fd.name, Message: err.Error()}
			}
			*fd.dst = d
		}

		if len(s.TriggerDebounce) > 0 {
			merged := make(map[scheduler.Trigger]time.Duration, len(c.Scheduler.TriggerDebounce)+len(s.TriggerDebounce))
			for t, d := range c.Scheduler.TriggerDebounce {
				merged[t] = d
			}
			for name, raw := range s.TriggerDebounce {
				t := scheduler.Trigger(name)
				if !scheduler.Known(t) {
					return Config{}, &Error{Field: "scheduler.trigger_debounce", Message: fmt.Sprintf("unknown trigger %q", name)}
				}
				d, err := time.ParseDuration(raw)
				if err != nil {
					return Config{}, &Error{Field: "scheduler.trigger_debounce." + name, Message: err.Error()}
				}
				merged[t] = d
			}
			c.Scheduler.TriggerDebounce = merged
		}
	}

	if err := c.Scheduler.Validate(); err != nil {
		return Config{}, &Error{Field: "scheduler", Message: err.Error()}
	}
	return c, nil
}

// Marshal renders c as YAML in the on-disk shape.
func Marshal(c Config) ([]byte, error) {
	s := c.Scheduler
	sf := &schedulerFile{
		Debounce:      s.Debounce.String(),
		PollInterval:  s.PollInterval.String(),
		MaxWait:       s.MaxWait.String(),
		Throttle:      s.Throttle.String(),
		MergeInterval: s.MergeInterval.String(),
	}
	if len(s.TriggerDebounce) > 0 {
		sf.TriggerDebounce = make(map[string]string, len(s.TriggerDebounce))
		for t, d := range s.TriggerDebounce {
			sf.TriggerDebounce[string(t)] = d.String()
		}
	}
	return yaml.Marshal(file{Scope: c.Scope, DB: c.DB, Scheduler: sf})
}
