// Package postgres implements a remote snapshot store on PostgreSQL via pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/chatflow/pkg/domain"
)

//go:embed schema.sql
var schema string

// Querier is the subset of pgxpool.Pool the Store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ports.RemoteStore on a chat_states table.
type Store struct {
	db Querier
}

// NewPool creates a pgx connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, config)
}

// New wraps an existing pool or connection.
func New(db Querier) *Store {
	return &Store{db: db}
}

// Migrate creates the chat_states table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// SaveState upserts the snapshot for userID.
func (s *Store) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	data, err := domain.EncodeState(state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO chat_states (user_id, state, current_step, flow_hash, updated_at, answer_count, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id) DO UPDATE SET
			state = EXCLUDED.state,
			current_step = EXCLUDED.current_step,
			flow_hash = EXCLUDED.flow_hash,
			updated_at = EXCLUDED.updated_at,
			answer_count = EXCLUDED.answer_count,
			saved_at = now()
	`, userID, data, state.CurrentStep, state.FlowHash, state.UpdatedAt, len(state.Answers))
	if err != nil {
		return fmt.Errorf("postgres: SaveState: %w", err)
	}
	return nil
}

// LoadState reads the snapshot for userID.
// Rows written by WriteMetadata alone have no state and read as not found.
func (s *Store) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	var data *string
	row := s.db.QueryRow(ctx, `SELECT state::text FROM chat_states WHERE user_id=$1`, userID)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("postgres: LoadState: %w", err)
	}
	if data == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return domain.DecodeState(*data)
}

// DeleteState removes the row for userID.
func (s *Store) DeleteState(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM chat_states WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("postgres: DeleteState: %w", err)
	}
	return nil
}

// WriteMetadata upserts only the progress columns, leaving state NULL for new rows.
func (s *Store) WriteMetadata(ctx context.Context, userID string, meta domain.SnapshotMetadata) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_states (user_id, state, current_step, flow_hash, updated_at, answer_count, saved_at)
		VALUES ($1, NULL, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			flow_hash = EXCLUDED.flow_hash,
			updated_at = EXCLUDED.updated_at,
			answer_count = EXCLUDED.answer_count,
			saved_at = now()
	`, userID, meta.CurrentStep, meta.FlowHash, meta.UpdatedAt, meta.AnswerCount)
	if err != nil {
		return fmt.Errorf("postgres: WriteMetadata: %w", err)
	}
	return nil
}
