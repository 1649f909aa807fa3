package scheduler

import (
	"fmt"
	"time"
)

// Config holds the scheduler's timing.
type Config struct {
	// Debounce is the collection window for triggers without an override.
	Debounce time.Duration `json:"debounce" yaml:"debounce"`

	// TriggerDebounce overrides Debounce per trigger. Edit and swipe get a
	// longer window to catch the generation that usually follows.
	TriggerDebounce map[Trigger]time.Duration `json:"trigger_debounce" yaml:"trigger_debounce"`

	// PollInterval is how often a debounce window checks for an urgent
	// combination.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// MaxWait bounds any debounce window.
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait"`

	// Throttle is the pause after each job, letting the host settle its own
	// writes before the next job reads commits.
	Throttle time.Duration `json:"throttle" yaml:"throttle"`

	// MergeInterval is the largest gap between two jobs that still combine
	// or collide.
	MergeInterval time.Duration `json:"merge_interval" yaml:"merge_interval"`
}

// DefaultConfig returns production timing.
func DefaultConfig() Config {
	return Config{
		Debounce: 100 * time.Millisecond,
		TriggerDebounce: map[Trigger]time.Duration{
			TriggerMessageEdited: 500 * time.Millisecond,
			TriggerMessageSwiped: 500 * time.Millisecond,
		},
		PollInterval:  25 * time.Millisecond,
		MaxWait:       2 * time.Second,
		Throttle:      50 * time.Millisecond,
		MergeInterval: time.Second,
	}
}

// Validate checks the timing is usable.
func (c Config) Validate() error {
	if c.Debounce < 0 || c.PollInterval < 0 || c.Throttle < 0 || c.MergeInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.MaxWait <= 0 {
		return fmt.Errorf("max_wait must be positive, got %s", c.MaxWait)
	}
	for t, d := range c.TriggerDebounce {
		if d < 0 {
			return fmt.Errorf("trigger_debounce[%s] must not be negative", t)
		}
	}
	return nil
}

// window returns the debounce window for a batch: the longest window of any
// queued trigger, capped at MaxWait.
func (c Config) window(jobs []Job) time.Duration {
	w := c.Debounce
	for _, j := range jobs {
		if d, ok := c.TriggerDebounce[j.Trigger]; ok && d > w {
			w = d
		}
	}
	return min(w, c.MaxWait)
}
