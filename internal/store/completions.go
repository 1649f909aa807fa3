package store

import (
	"context"
	"fmt"

	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
)

// Completion is a recorded completion notification. The full log map and
// metadata-carrying document are not kept; the ledger holds them.
type Completion struct {
	Seq          int64        `json:"seq"`
	Scope        string       `json:"scope"`
	LastID       string       `json:"last_id"`
	LastPosition int          `json:"last_position"`
	Phases       []host.Phase `json:"phases"`
	Positions    []string     `json:"positions"`
	Stripped     ir.IRValue   `json:"stripped"`
}

func (s *Store) writeCompletion(ctx context.Context, c host.Completion) error {
	phases := make([]string, len(c.Phases))
	for i, p := range c.Phases {
		phases[i] = string(p)
	}
	phasesJSON, err := marshalStrings(phases)
	if err != nil {
		return err
	}
	posJSON, err := marshalStrings(c.Positions)
	if err != nil {
		return err
	}
	stripped, err := marshalValue(c.Stripped)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO completions (scope, last_id, last_position, phases, positions, stripped)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Scope, c.LastID, c.LastPosition, phasesJSON, posJSON, stripped)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}
	return nil
}

// readCompletions returns the newest limit completions of scope in seq
// order.
func (s *Store) readCompletions(ctx context.Context, scope string, limit int) ([]Completion, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, scope, last_id, last_position, phases, positions, stripped FROM (
			SELECT * FROM completions WHERE scope = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`, scope, limit)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	out := []Completion{}
	for rows.Next() {
		var (
			c                             Completion
			phasesJSON, posJSON, stripped string
		)
		if err := rows.Scan(&c.Seq, &c.Scope, &c.LastID, &c.LastPosition, &phasesJSON, &posJSON, &stripped); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		phases, err := unmarshalStrings(phasesJSON)
		if err != nil {
			return nil, err
		}
		for _, p := range phases {
			c.Phases = append(c.Phases, host.Phase(p))
		}
		if c.Positions, err = unmarshalStrings(posJSON); err != nil {
			return nil, err
		}
		if c.Stripped, err = ir.UnmarshalIRValue([]byte(stripped)); err != nil {
			return nil, fmt.Errorf("unmarshal stripped document: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return out, nil
}
