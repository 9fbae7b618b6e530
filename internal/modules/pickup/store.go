// README: Pickup store backed by PostgreSQL; status writes are compare-and-swap on (status, status_version).
package pickup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const pickupColumns = `
	id, owner_id, items, total_weight_kg, address, instructions,
	scheduled_at, time_slot, status, status_version,
	agent_id, agent_name, agent_email,
	awarded_points, gains_cents,
	created_at, updated_at, assigned_at, completed_at, cancelled_at`

func (s *Store) Create(ctx context.Context, p *Pickup) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return err
	}
	agentID, agentName, agentEmail := agentColumns(p.Agent)
	_, err = s.db.Exec(ctx, `
		INSERT INTO pickups (`+pickupColumns+`)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15,
			$16, $17, $18, $19, $20
		)`,
		string(p.ID), string(p.OwnerID), items, p.TotalWeightKg, p.Address, p.Instructions,
		p.ScheduledAt, string(p.TimeSlot), string(p.Status), p.StatusVersion,
		agentID, agentName, agentEmail,
		p.AwardedPoints, centsOf(p.Gains),
		p.CreatedAt, p.UpdatedAt, p.AssignedAt, p.CompletedAt, p.CancelledAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	row := s.db.QueryRow(ctx, `SELECT `+pickupColumns+` FROM pickups WHERE id = $1`, string(id))
	p, err := scanPickup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Pickup, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+pickupColumns+`
		FROM pickups
		WHERE owner_id = $1
		ORDER BY created_at DESC`, string(ownerID))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Pickup, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.Query(ctx, `SELECT `+pickupColumns+` FROM pickups ORDER BY created_at DESC`)
	} else {
		names := make([]string, 0, len(statuses))
		for _, st := range statuses {
			names = append(names, string(st))
		}
		rows, err = s.db.Query(ctx, `
			SELECT `+pickupColumns+`
			FROM pickups
			WHERE status = ANY($1)
			ORDER BY created_at DESC`, names)
	}
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) UpdateIf(ctx context.Context, p *Pickup, c Change) (bool, error) {
	var ok bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		ok, err = updateIf(ctx, tx, p, c)
		return err
	})
	return ok, err
}

func (s *Store) CompleteIf(ctx context.Context, p *Pickup, c Change) (Totals, bool, error) {
	var (
		totals Totals
		ok     bool
	)
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		ok, err = updateIf(ctx, tx, p, c)
		if err != nil || !ok {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO user_rewards (user_id, total_points, total_gains_cents, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET total_points = user_rewards.total_points + EXCLUDED.total_points,
			    total_gains_cents = user_rewards.total_gains_cents + EXCLUDED.total_gains_cents,
			    updated_at = EXCLUDED.updated_at
			RETURNING total_points, total_gains_cents`,
			string(p.OwnerID), p.AwardedPoints, centsOf(p.Gains), p.UpdatedAt,
		)
		var cents int64
		if err := row.Scan(&totals.Points, &cents); err != nil {
			return err
		}
		totals.OwnerID = p.OwnerID
		totals.Gains = fromCents(cents)
		return nil
	})
	if err != nil {
		return Totals{}, false, err
	}
	return totals, ok, nil
}

func (s *Store) Totals(ctx context.Context, ownerID types.ID) (Totals, error) {
	t := Totals{OwnerID: ownerID}
	var cents int64
	err := s.db.QueryRow(ctx, `
		SELECT total_points, total_gains_cents
		FROM user_rewards
		WHERE user_id = $1`, string(ownerID),
	).Scan(&t.Points, &cents)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, nil
	}
	if err != nil {
		return Totals{}, err
	}
	t.Gains = fromCents(cents)
	return t, nil
}

func (s *Store) History(ctx context.Context, id types.ID) ([]Event, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pickups WHERE id = $1)`, string(id)).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, pickup_id, from_status, to_status, actor_id, actor_role, created_at
		FROM pickup_state_events
		WHERE pickup_id = $1
		ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.PickupID, &e.FromStatus, &e.ToStatus, &e.ActorID, &e.ActorRole, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func updateIf(ctx context.Context, tx pgx.Tx, p *Pickup, c Change) (bool, error) {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return false, err
	}
	agentID, agentName, agentEmail := agentColumns(p.Agent)
	tag, err := tx.Exec(ctx, `
		UPDATE pickups
		SET items = $1,
		    total_weight_kg = $2,
		    address = $3,
		    instructions = $4,
		    scheduled_at = $5,
		    time_slot = $6,
		    status = $7,
		    status_version = $8,
		    agent_id = $9,
		    agent_name = $10,
		    agent_email = $11,
		    awarded_points = $12,
		    gains_cents = $13,
		    updated_at = $14,
		    assigned_at = $15,
		    completed_at = $16,
		    cancelled_at = $17
		WHERE id = $18 AND status = $19 AND status_version = $20`,
		items, p.TotalWeightKg, p.Address, p.Instructions,
		p.ScheduledAt, string(p.TimeSlot), string(p.Status), p.StatusVersion,
		agentID, agentName, agentEmail,
		p.AwardedPoints, centsOf(p.Gains),
		p.UpdatedAt, p.AssignedAt, p.CompletedAt, p.CancelledAt,
		string(p.ID), string(c.Expected), c.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if p.Status == c.Expected {
		return true, nil
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO pickup_state_events (pickup_id, from_status, to_status, actor_id, actor_role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(p.ID), string(c.Expected), string(p.Status), string(c.Actor.ID), string(c.Actor.Role), p.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanPickup(row pgx.Row) (*Pickup, error) {
	var p Pickup
	var items []byte
	var agentID, agentName, agentEmail sql.NullString
	var gainsCents int64
	var assignedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.OwnerID, &items, &p.TotalWeightKg, &p.Address, &p.Instructions,
		&p.ScheduledAt, &p.TimeSlot, &p.Status, &p.StatusVersion,
		&agentID, &agentName, &agentEmail,
		&p.AwardedPoints, &gainsCents,
		&p.CreatedAt, &p.UpdatedAt, &assignedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &p.Items); err != nil {
			return nil, err
		}
	}
	if agentID.Valid {
		p.Agent = &AgentRef{ID: types.ID(agentID.String), Name: agentName.String, Email: agentEmail.String}
	}
	p.Gains = fromCents(gainsCents)
	p.AssignedAt = toTimePtr(assignedAt)
	p.CompletedAt = toTimePtr(completedAt)
	p.CancelledAt = toTimePtr(cancelledAt)
	return &p, nil
}

func collect(rows pgx.Rows) ([]*Pickup, error) {
	defer rows.Close()
	out := make([]*Pickup, 0)
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func agentColumns(a *AgentRef) (*string, *string, *string) {
	if a == nil {
		return nil, nil, nil
	}
	id := string(a.ID)
	return &id, &a.Name, &a.Email
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
