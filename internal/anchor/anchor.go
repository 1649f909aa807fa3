package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/roach88/docsync/internal/host"
)

// ErrNoAnchor is returned when content is expected to carry an anchor but
// does not.
var ErrNoAnchor = errors.New("commit has no identity anchor")

// anchorLine matches the anchor on the first line of content.
var anchorLine = regexp.MustCompile(`^<!-- docsync:id=([A-Za-z0-9._-]+) -->`)

// Format renders the anchor for id.
func Format(id string) string {
	return "<!-- docsync:id=" + id + " -->"
}

// Parse returns the id anchored on the first line of content.
func Parse(content string) (string, bool) {
	m := anchorLine.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Inject places the anchor for id at the start of content. Content that
// already carries an anchor has it replaced.
func Inject(content, id string) string {
	return Format(id) + "\n" + Strip(content)
}

// Strip removes the anchor line, if any.
func Strip(content string) string {
	loc := anchorLine.FindStringIndex(content)
	if loc == nil {
		return content
	}
	return strings.TrimPrefix(content[loc[1]:], "\n")
}

// Generator produces fresh ids.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type Generator interface {
	Generate() string
}

// IdentityError reports a commit whose identity could not be established.
// The job that hit it aborts without touching the document.
type IdentityError struct {
	Position int
	Err      error
}

// Error implements the error interface.
func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity of commit %d: %v", e.Position, e.Err)
}

// Unwrap returns the cause.
func (e *IdentityError) Unwrap() error { return e.Err }

// Anchorer reads and assigns identity anchors.
type Anchorer struct {
	commits host.CommitStore
	gen     Generator
	logger  *slog.Logger
}

// New creates an Anchorer that persists injected anchors through commits.
func New(commits host.CommitStore, gen Generator, logger *slog.Logger) *Anchorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Anchorer{commits: commits, gen: gen, logger: logger}
}

// Ensure returns the id anchored in c, generating, injecting and persisting
// one when the content has none. Calling it again on unmodified content
// returns the same id without a write.
func (a *Anchorer) Ensure(ctx context.Context, c *host.Commit) (string, error) {
	if id, ok := Parse(c.Content); ok {
		return id, nil
	}
	id := a.gen.Generate()
	content := Inject(c.Content, id)
	if err := a.commits.SetContent(ctx, c.Position, content); err != nil {
		return "", &IdentityError{Position: c.Position, Err: err}
	}
	c.Content = content
	if len(c.Variants) > 0 && c.Active < len(c.Variants) {
		c.Variants[c.Active] = content
	}
	a.logger.Debug("anchor injected", "position", c.Position, "commit_id", id)
	return id, nil
}

// Reanchor replaces the anchor of c with a fresh id and persists it. Used
// when two commits carry the same id, so that an id maps to at most one
// commit.
func (a *Anchorer) Reanchor(ctx context.Context, c *host.Commit) (string, error) {
	id := a.gen.Generate()
	content := Inject(c.Content, id)
	if err := a.commits.SetContent(ctx, c.Position, content); err != nil {
		return "", &IdentityError{Position: c.Position, Err: err}
	}
	old, _ := Parse(c.Content)
	c.Content = content
	if len(c.Variants) > 0 && c.Active < len(c.Variants) {
		c.Variants[c.Active] = content
	}
	a.logger.Info("duplicate anchor replaced", "position", c.Position, "old_id", old, "commit_id", id)
	return id, nil
}

// Fetch reads the commit at position and ensures its identity.
func (a *Anchorer) Fetch(ctx context.Context, position int) (host.Commit, string, error) {
	commits, err := a.commits.Commits(ctx, position, position+1)
	if err != nil {
		return host.Commit{}, "", &IdentityError{Position: position, Err: err}
	}
	if len(commits) == 0 {
		return host.Commit{}, "", &IdentityError{Position: position, Err: host.ErrUnknownCommit}
	}
	c := commits[0]
	id, err := a.Ensure(ctx, &c)
	return c, id, err
}
