package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/docsync/internal/host"
)

// Host is a commit list and completion sink kept in the database, for
// scopes docsync hosts itself (the CLI). It publishes no triggers: the
// caller submits jobs after each change.
type Host struct {
	store  *Store
	scope  string
	logger *slog.Logger
}

var (
	_ host.CommitStore = (*Host)(nil)
	_ host.Notifier    = (*Host)(nil)
)

// Host returns the hosted commit list of scope.
func (s *Store) Host(scope string, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{store: s, scope: scope, logger: logger}
}

// Scope returns the scope h serves.
func (h *Host) Scope() string { return h.scope }

// Commits implements host.CommitStore.
func (h *Host) Commits(ctx context.Context, from, to int) ([]host.Commit, error) {
	rows, err := h.store.db.QueryContext(ctx, `
		SELECT position, role, content, variants, active FROM commits
		WHERE scope = ? AND position >= ? AND position < ?
		ORDER BY position ASC
	`, h.scope, max(from, 0), to)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	var out []host.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	return out, nil
}

// Len implements host.CommitStore.
func (h *Host) Len(ctx context.Context) (int, error) {
	var n int
	err := h.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits WHERE scope = ?`, h.scope).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count commits: %w", err)
	}
	return n, nil
}

// SetContent implements host.CommitStore. The active variant is rewritten
// along with the content.
func (h *Host) SetContent(ctx context.Context, position int, content string) error {
	return h.store.withTx(ctx, func(tx *sql.Tx) error {
		c, err := commitAt(ctx, tx, h.scope, position)
		if err != nil {
			return err
		}
		c.Variants[c.Active] = content
		return writeVariants(ctx, tx, h.scope, position, c.Variants, c.Active)
	})
}

// Append adds a commit at the end and returns its position.
func (h *Host) Append(ctx context.Context, role host.Role, content string) (int, error) {
	variants, err := marshalStrings([]string{content})
	if err != nil {
		return 0, err
	}
	var pos int
	err = h.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits WHERE scope = ?`, h.scope).Scan(&pos); err != nil {
			return fmt.Errorf("count commits: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO commits (scope, position, role, content, variants, active)
			VALUES (?, ?, ?, ?, ?, 0)
		`, h.scope, pos, string(role), content, variants)
		if err != nil {
			return fmt.Errorf("insert commit: %w", err)
		}
		return nil
	})
	return pos, err
}

// Delete removes the commit at position; later commits shift down.
func (h *Host) Delete(ctx context.Context, position int) error {
	return h.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM commits WHERE scope = ? AND position = ?`, h.scope, position)
		if err != nil {
			return fmt.Errorf("delete commit: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("position %d: %w", position, host.ErrUnknownCommit)
		}
		// Two passes through negative positions: SQLite checks the primary
		// key row by row, so shifting in place could collide.
		if _, err := tx.ExecContext(ctx,
			`UPDATE commits SET position = -position WHERE scope = ? AND position > ?`,
			h.scope, position); err != nil {
			return fmt.Errorf("shift commits: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE commits SET position = -position - 1 WHERE scope = ? AND position < 0`,
			h.scope); err != nil {
			return fmt.Errorf("shift commits: %w", err)
		}
		return nil
	})
}

// Swipe adds content as a new variant of the commit and makes it active.
func (h *Host) Swipe(ctx context.Context, position int, content string) error {
	return h.store.withTx(ctx, func(tx *sql.Tx) error {
		c, err := commitAt(ctx, tx, h.scope, position)
		if err != nil {
			return err
		}
		c.Variants = append(c.Variants, content)
		return writeVariants(ctx, tx, h.scope, position, c.Variants, len(c.Variants)-1)
	})
}

// SwitchVariant makes an existing variant active.
func (h *Host) SwitchVariant(ctx context.Context, position, variant int) error {
	return h.store.withTx(ctx, func(tx *sql.Tx) error {
		c, err := commitAt(ctx, tx, h.scope, position)
		if err != nil {
			return err
		}
		if variant < 0 || variant >= len(c.Variants) {
			return fmt.Errorf("position %d: no variant %d", position, variant)
		}
		return writeVariants(ctx, tx, h.scope, position, c.Variants, variant)
	})
}

// Notify implements host.Notifier by recording c. A failed write is
// logged; notification never fails the job.
func (h *Host) Notify(ctx context.Context, c host.Completion) {
	if err := h.store.writeCompletion(ctx, c); err != nil {
		h.logger.Error("record completion failed",
			"scope", c.Scope,
			"last_id", c.LastID,
			"error", err)
	}
}

// Completions returns the recorded completions of the scope, oldest
// first. limit <= 0 returns all.
func (h *Host) Completions(ctx context.Context, limit int) ([]Completion, error) {
	return h.store.readCompletions(ctx, h.scope, limit)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommit(row rowScanner) (host.Commit, error) {
	var (
		c        host.Commit
		role     string
		variants string
	)
	if err := row.Scan(&c.Position, &role, &c.Content, &variants, &c.Active); err != nil {
		return host.Commit{}, fmt.Errorf("scan commit: %w", err)
	}
	c.Role = host.Role(role)
	v, err := unmarshalStrings(variants)
	if err != nil {
		return host.Commit{}, err
	}
	c.Variants = v
	return c, nil
}

func commitAt(ctx context.Context, tx *sql.Tx, scope string, position int) (host.Commit, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT position, role, content, variants, active FROM commits
		WHERE scope = ? AND position = ?
	`, scope, position)
	c, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return host.Commit{}, fmt.Errorf("position %d: %w", position, host.ErrUnknownCommit)
	}
	if err != nil {
		return host.Commit{}, err
	}
	if len(c.Variants) == 0 {
		c.Variants = []string{c.Content}
		c.Active = 0
	}
	return c, nil
}

func writeVariants(ctx context.Context, tx *sql.Tx, scope string, position int, variants []string, active int) error {
	data, err := marshalStrings(variants)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE commits SET content = ?, variants = ?, active = ?
		WHERE scope = ? AND position = ?
	`, variants[active], data, active, scope, position)
	if err != nil {
		return fmt.Errorf("update commit: %w", err)
	}
	return nil
}
