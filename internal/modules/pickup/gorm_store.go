// README: Pickup store on GORM, used with the embedded sqlite driver for single-node deployments.
package pickup

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

type pickupRow struct {
	ID            string `gorm:"primaryKey"`
	OwnerID       string `gorm:"index;not null"`
	Items         []Item `gorm:"serializer:json;not null"`
	TotalWeightKg float64
	Address       string
	Instructions  string
	ScheduledAt   time.Time
	TimeSlot      string
	Status        string `gorm:"index;not null"`
	StatusVersion int    `gorm:"not null"`
	AgentID       *string
	AgentName     *string
	AgentEmail    *string
	AwardedPoints int64
	GainsCents    int64
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
	AssignedAt    *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

func (pickupRow) TableName() string { return "pickups" }

type rewardRow struct {
	UserID          string `gorm:"primaryKey"`
	TotalPoints     int64
	TotalGainsCents int64
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

func (rewardRow) TableName() string { return "user_rewards" }

type eventRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	PickupID   string `gorm:"index;not null"`
	FromStatus string
	ToStatus   string
	ActorID    string
	ActorRole  string
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
}

func (eventRow) TableName() string { return "pickup_state_events" }

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the pickup tables if missing.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&pickupRow{}, &rewardRow{}, &eventRow{})
}

func (s *GormStore) Create(ctx context.Context, p *Pickup) error {
	row := toRow(p)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	var row pickupRow
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toPickup(), nil
}

func (s *GormStore) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Pickup, error) {
	var rows []pickupRow
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", string(ownerID)).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *GormStore) ListByStatus(ctx context.Context, statuses ...Status) ([]*Pickup, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, st := range statuses {
			names = append(names, string(st))
		}
		q = q.Where("status IN ?", names)
	}
	var rows []pickupRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *GormStore) UpdateIf(ctx context.Context, p *Pickup, c Change) (bool, error) {
	var ok bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = gormUpdateIf(tx, p, c)
		return err
	})
	return ok, err
}

func (s *GormStore) CompleteIf(ctx context.Context, p *Pickup, c Change) (Totals, bool, error) {
	var (
		totals Totals
		ok     bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = gormUpdateIf(tx, p, c)
		if err != nil || !ok {
			return err
		}
		credit := rewardRow{
			UserID:          string(p.OwnerID),
			TotalPoints:     p.AwardedPoints,
			TotalGainsCents: centsOf(p.Gains),
			UpdatedAt:       p.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"total_points":      gorm.Expr("user_rewards.total_points + ?", credit.TotalPoints),
				"total_gains_cents": gorm.Expr("user_rewards.total_gains_cents + ?", credit.TotalGainsCents),
				"updated_at":        credit.UpdatedAt,
			}),
		}).Create(&credit).Error; err != nil {
			return err
		}
		var row rewardRow
		if err := tx.Where("user_id = ?", string(p.OwnerID)).Take(&row).Error; err != nil {
			return err
		}
		totals = Totals{OwnerID: p.OwnerID, Points: row.TotalPoints, Gains: fromCents(row.TotalGainsCents)}
		return nil
	})
	if err != nil {
		return Totals{}, false, err
	}
	return totals, ok, nil
}

func (s *GormStore) Totals(ctx context.Context, ownerID types.ID) (Totals, error) {
	var row rewardRow
	err := s.db.WithContext(ctx).Where("user_id = ?", string(ownerID)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Totals{OwnerID: ownerID, Gains: fromCents(0)}, nil
	}
	if err != nil {
		return Totals{}, err
	}
	return Totals{OwnerID: ownerID, Points: row.TotalPoints, Gains: fromCents(row.TotalGainsCents)}, nil
}

func (s *GormStore) History(ctx context.Context, id types.ID) ([]Event, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&pickupRow{}).Where("id = ?", string(id)).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	var rows []eventRow
	if err := s.db.WithContext(ctx).Where("pickup_id = ?", string(id)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, Event{
			ID:         r.ID,
			PickupID:   types.ID(r.PickupID),
			FromStatus: Status(r.FromStatus),
			ToStatus:   Status(r.ToStatus),
			ActorID:    types.ID(r.ActorID),
			ActorRole:  types.Role(r.ActorRole),
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

func gormUpdateIf(tx *gorm.DB, p *Pickup, c Change) (bool, error) {
	row := toRow(p)
	res := tx.Model(&pickupRow{}).
		Where("id = ? AND status = ? AND status_version = ?", row.ID, string(c.Expected), c.Version).
		Select("*").Omit("id", "owner_id", "created_at").
		Updates(&row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	if p.Status == c.Expected {
		return true, nil
	}
	ev := eventRow{
		PickupID:   row.ID,
		FromStatus: string(c.Expected),
		ToStatus:   row.Status,
		ActorID:    string(c.Actor.ID),
		ActorRole:  string(c.Actor.Role),
		CreatedAt:  p.UpdatedAt,
	}
	if err := tx.Create(&ev).Error; err != nil {
		return false, err
	}
	return true, nil
}

func toRow(p *Pickup) pickupRow {
	row := pickupRow{
		ID:            string(p.ID),
		OwnerID:       string(p.OwnerID),
		Items:         p.Items,
		TotalWeightKg: p.TotalWeightKg,
		Address:       p.Address,
		Instructions:  p.Instructions,
		ScheduledAt:   p.ScheduledAt,
		TimeSlot:      string(p.TimeSlot),
		Status:        string(p.Status),
		StatusVersion: p.StatusVersion,
		AwardedPoints: p.AwardedPoints,
		GainsCents:    centsOf(p.Gains),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		AssignedAt:    p.AssignedAt,
		CompletedAt:   p.CompletedAt,
		CancelledAt:   p.CancelledAt,
	}
	row.AgentID, row.AgentName, row.AgentEmail = agentColumns(p.Agent)
	return row
}

func (r pickupRow) toPickup() *Pickup {
	p := &Pickup{
		ID:            types.ID(r.ID),
		OwnerID:       types.ID(r.OwnerID),
		Items:         r.Items,
		TotalWeightKg: r.TotalWeightKg,
		Address:       r.Address,
		Instructions:  r.Instructions,
		ScheduledAt:   r.ScheduledAt,
		TimeSlot:      TimeSlot(r.TimeSlot),
		Status:        Status(r.Status),
		StatusVersion: r.StatusVersion,
		AwardedPoints: r.AwardedPoints,
		Gains:         fromCents(r.GainsCents),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		AssignedAt:    r.AssignedAt,
		CompletedAt:   r.CompletedAt,
		CancelledAt:   r.CancelledAt,
	}
	if r.AgentID != nil {
		p.Agent = &AgentRef{ID: types.ID(*r.AgentID)}
		if r.AgentName != nil {
			p.Agent.Name = *r.AgentName
		}
		if r.AgentEmail != nil {
			p.Agent.Email = *r.AgentEmail
		}
	}
	return p
}

func fromRows(rows []pickupRow) []*Pickup {
	out := make([]*Pickup, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPickup())
	}
	return out
}
