package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/docsync/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Load implements ledger.Store. A scope never written loads as an empty
// state.
func (s *Store) Load(ctx context.Context, scope string) (*ledger.State, error) {
	var st *ledger.State
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		st, _, err = loadState(ctx, tx, scope)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load ledger %q: %w", scope, err)
	}
	return st, nil
}

// Update implements ledger.Store. fn runs inside the transaction; if it
// returns an error nothing is written.
func (s *Store) Update(ctx context.Context, scope string, fn func(*ledger.State) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		st, revision, err := loadState(ctx, tx, scope)
		if err != nil {
			return fmt.Errorf("load ledger %q: %w", scope, err)
		}
		if err := fn(st); err != nil {
			return err
		}
		if err := saveState(ctx, tx, scope, st, revision+1); err != nil {
			return fmt.Errorf("save ledger %q: %w", scope, err)
		}
		return nil
	})
}

// Revision returns how many updates scope has committed.
func (s *Store) Revision(ctx context.Context, scope string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM ledgers WHERE scope = ?`, scope).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query revision: %w", err)
	}
	return rev, nil
}

// Scopes lists every scope with a ledger, in byte order.
func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scope FROM ledgers ORDER BY scope COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	scopes := []string{}
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return scopes, nil
}

func loadState(ctx context.Context, tx *sql.Tx, scope string) (*ledger.State, int64, error) {
	var (
		docJSON, posJSON string
		revision         int64
	)
	err := tx.QueryRowContext(ctx,
		`SELECT document, positions, revision FROM ledgers WHERE scope = ?`, scope,
	).Scan(&docJSON, &posJSON, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.NewState(), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("query ledger: %w", err)
	}

	st := ledger.NewState()
	if st.Document, err = unmarshalDocument(docJSON); err != nil {
		return nil, 0, err
	}
	if st.Positions, err = unmarshalStrings(posJSON); err != nil {
		return nil, 0, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT commit_id, entries FROM edit_logs
		WHERE scope = ?
		ORDER BY commit_id COLLATE BINARY ASC
	`, scope)
	if err != nil {
		return nil, 0, fmt.Errorf("query edit logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, entries string
		if err := rows.Scan(&id, &entries); err != nil {
			return nil, 0, fmt.Errorf("scan edit log: %w", err)
		}
		log, err := unmarshalLog(entries)
		if err != nil {
			return nil, 0, fmt.Errorf("edit log %s: %w", id, err)
		}
		st.Logs[id] = log
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate edit logs: %w", err)
	}
	return st, revision, nil
}

// saveState rewrites the whole ledger row and the edit logs of scope.
func saveState(ctx context.Context, tx *sql.Tx, scope string, st *ledger.State, revision int64) error {
	docJSON, err := marshalDocument(st.Document)
	if err != nil {
		return err
	}
	posJSON, err := marshalStrings(st.Positions)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledgers (scope, document, positions, revision)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			document = excluded.document,
			positions = excluded.positions,
			revision = excluded.revision
	`, scope, docJSON, posJSON, revision)
	if err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM edit_logs WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("clear edit logs: %w", err)
	}
	for _, id := range st.LogIDs() {
		entries, err := marshalLog(st.Logs[id])
		if err != nil {
			return fmt.Errorf("edit log %s: %w", id, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO edit_logs (scope, commit_id, entries) VALUES (?, ?, ?)`,
			scope, id, entries)
		if err != nil {
			return fmt.Errorf("write edit log %s: %w", id, err)
		}
	}
	return nil
}
