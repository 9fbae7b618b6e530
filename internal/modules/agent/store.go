package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

// Store reads agents from the delivery_agents table.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Agent, error) {
	var a Agent
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, active
		FROM delivery_agents
		WHERE id = $1`, string(id),
	).Scan(&a.ID, &a.Name, &a.Email, &a.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) List(ctx context.Context) ([]Agent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, email, active
		FROM delivery_agents
		WHERE active
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Agent, 0)
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Active); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Upsert registers or refreshes an agent.
func (s *Store) Upsert(ctx context.Context, a Agent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO delivery_agents (id, name, email, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, active = EXCLUDED.active`,
		string(a.ID), a.Name, a.Email, a.Active,
	)
	return err
}

// Seed upserts every agent, stopping at the first failure.
func (s *Store) Seed(ctx context.Context, agents []Agent) error {
	for _, a := range agents {
		if err := s.Upsert(ctx, a); err != nil {
			return fmt.Errorf("seed agent %s: %w", a.ID, err)
		}
	}
	return nil
}
