package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/store"
)

// TerminalStore implements store.TerminalStore using PostgreSQL.
type TerminalStore struct {
	pool *pgxpool.Pool
}

// NewTerminalStore creates a PostgreSQL-backed terminal store on a shared pool.
func NewTerminalStore(pool *pgxpool.Pool) *TerminalStore {
	return &TerminalStore{pool: pool}
}

// Add stores a new assignment.
func (s *TerminalStore) Add(ctx context.Context, orgID, terminalID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO terminals (terminal_id, org_id) VALUES ($1, $2)`,
		terminalID, orgID)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().Str("org_id", orgID).Str("terminal_id", terminalID).Msg("Stored terminal")
	return nil
}

// Remove deletes an assignment.
func (s *TerminalStore) Remove(ctx context.Context, orgID, terminalID string) error {
	result, err := s.pool.Exec(ctx,
		`DELETE FROM terminals WHERE org_id = $1 AND terminal_id = $2`,
		orgID, terminalID)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrTerminalNotFound
	}

	log.Debug().Str("org_id", orgID).Str("terminal_id", terminalID).Msg("Deleted terminal")
	return nil
}

// Replace renames a terminal; position is untouched so routing order holds.
func (s *TerminalStore) Replace(ctx context.Context, orgID, oldID, newID string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE terminals SET
			terminal_id = $3,
			updated_at = now()
		WHERE org_id = $1 AND terminal_id = $2
	`, orgID, oldID, newID)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrTerminalNotFound
	}

	log.Debug().Str("org_id", orgID).Str("old_terminal_id", oldID).Str("terminal_id", newID).Msg("Replaced terminal")
	return nil
}

// List returns every assignment.
func (s *TerminalStore) List(ctx context.Context) ([]store.Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT org_id, terminal_id, created_at
		FROM terminals
		ORDER BY org_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminals: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var assignments []store.Assignment
	for rows.Next() {
		var a store.Assignment
		if err := rows.Scan(&a.OrgID, &a.TerminalID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan terminal: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating terminals: %w", err)
	}

	return assignments, nil
}
