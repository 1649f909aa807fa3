package host

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Memory is an in-memory host: a commit list, a trigger bus, and a
// completion sink. Mutators publish the trigger a real host would emit.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers are
// called synchronously, outside the lock, in subscription order.
type Memory struct {
	mu          sync.Mutex
	commits     []Commit
	subs        map[int]func(Event)
	nextSub     int
	completions []Completion
	writes      int
}

// NewMemory creates an empty host.
func NewMemory() *Memory {
	return &Memory{subs: map[int]func(Event){}}
}

var (
	_ CommitStore = (*Memory)(nil)
	_ Notifier    = (*Memory)(nil)
	_ Bus         = (*Memory)(nil)
)

// Commits implements CommitStore.
func (m *Memory) Commits(_ context.Context, from, to int) ([]Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from = max(from, 0)
	to = min(to, len(m.commits))
	if from >= to {
		return nil, nil
	}
	out := make([]Commit, 0, to-from)
	for i := from; i < to; i++ {
		c := m.commits[i]
		c.Position = i
		c.Variants = append([]string(nil), c.Variants...)
		out = append(out, c)
	}
	return out, nil
}

// Len implements CommitStore.
func (m *Memory) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commits), nil
}

// SetContent implements CommitStore. It publishes nothing.
func (m *Memory) SetContent(_ context.Context, position int, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.at(position)
	if err != nil {
		return err
	}
	c.setContent(content)
	m.writes++
	return nil
}

// Writes counts SetContent calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) at(position int) (*Commit, error) {
	if position < 0 || position >= len(m.commits) {
		return nil, fmt.Errorf("position %d: %w", position, ErrUnknownCommit)
	}
	return &m.commits[position], nil
}

func (c *Commit) setContent(content string) {
	c.Content = content
	if len(c.Variants) > 0 {
		c.Variants[c.Active] = content
	}
}

// Append adds a commit at the end and returns its position.
func (m *Memory) Append(role Role, content string) int {
	m.mu.Lock()
	pos := len(m.commits)
	m.commits = append(m.commits, Commit{Role: role, Content: content, Variants: []string{content}})
	m.mu.Unlock()

	typ := EventMessageReceived
	if role == RoleUser {
		typ = EventMessageSent
	}
	m.Publish(Event{Type: typ, Position: pos})
	return pos
}

// Edit replaces the active content of a commit.
func (m *Memory) Edit(position int, content string) error {
	m.mu.Lock()
	c, err := m.at(position)
	if err == nil {
		c.setContent(content)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.Publish(Event{Type: EventMessageEdited, Position: position})
	return nil
}

// Delete removes a commit; later commits shift down one position.
func (m *Memory) Delete(position int) error {
	m.mu.Lock()
	_, err := m.at(position)
	if err == nil {
		m.commits = append(m.commits[:position:position], m.commits[position+1:]...)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.Publish(Event{Type: EventMessageDeleted, Position: position})
	return nil
}

// Swipe adds content as a new variant of the commit and makes it active.
func (m *Memory) Swipe(position int, content string) error {
	m.mu.Lock()
	c, err := m.at(position)
	if err == nil {
		c.Variants = append(c.Variants, content)
		c.Active = len(c.Variants) - 1
		c.Content = content
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.Publish(Event{Type: EventMessageSwiped, Position: position})
	return nil
}

// SwitchVariant makes an existing variant active.
func (m *Memory) SwitchVariant(position, variant int) error {
	m.mu.Lock()
	c, err := m.at(position)
	if err == nil && (variant < 0 || variant >= len(c.Variants)) {
		err = fmt.Errorf("position %d: no variant %d", position, variant)
	}
	if err == nil {
		c.Active = variant
		c.Content = c.Variants[variant]
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.Publish(Event{Type: EventMessageSwiped, Position: position})
	return nil
}

// Echo rewrites a commit with its own content, the way a host refreshes a
// rendered commit, and publishes the resulting update trigger.
func (m *Memory) Echo(position int) error {
	m.mu.Lock()
	c, err := m.at(position)
	if err == nil {
		c.setContent(c.Content)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.Publish(Event{Type: EventMessageUpdated, Position: position})
	return nil
}

// Subscribe implements Bus.
func (m *Memory) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Publish delivers e to every subscriber.
func (m *Memory) Publish(e Event) {
	m.mu.Lock()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		m.mu.Lock()
		fn, ok := m.subs[id]
		m.mu.Unlock()
		if ok {
			fn(e)
		}
	}
}

// Notify implements Notifier by recording c.
func (m *Memory) Notify(_ context.Context, c Completion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, c)
}

// Completions returns every completion recorded so far.
func (m *Memory) Completions() []Completion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Completion(nil), m.completions...)
}

// Seed replaces the commit list without publishing any trigger.
func (m *Memory) Seed(commits ...Commit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = make([]Commit, len(commits))
	for i, c := range commits {
		if len(c.Variants) == 0 {
			c.Variants = []string{c.Content}
			c.Active = 0
		}
		m.commits[i] = c
	}
}
