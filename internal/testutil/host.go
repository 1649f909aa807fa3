package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/docsync/internal/anchor"
	"github.com/roach88/docsync/internal/host"
)

// Bot returns an assistant commit already anchored with id.
func Bot(id, content string) host.Commit {
	return host.Commit{Role: host.RoleAssistant, Content: anchor.Inject(content, id)}
}

// User returns a user commit already anchored with id.
func User(id, content string) host.Commit {
	return host.Commit{Role: host.RoleUser, Content: anchor.Inject(content, id)}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
