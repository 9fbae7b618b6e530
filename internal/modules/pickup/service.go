// README: Pickup lifecycle: validates commands, applies transitions through conditional writes, then publishes.
package pickup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/metrics"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/realtime"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

const (
	defaultStoreTimeout   = 5 * time.Second
	defaultPublishTimeout = 2 * time.Second
)

type Options struct {
	StoreTimeout   time.Duration
	PublishTimeout time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.LifecycleMetrics
	Now            func() time.Time
}

type Service struct {
	repo           Repository
	bus            Publisher
	log            *logger.Logger
	metrics        *metrics.LifecycleMetrics
	now            func() time.Time
	storeTimeout   time.Duration
	publishTimeout time.Duration
}

func NewService(repo Repository, bus Publisher, opts Options) *Service {
	s := &Service{
		repo:           repo,
		bus:            bus,
		log:            opts.Logger,
		metrics:        opts.Metrics,
		now:            opts.Now,
		storeTimeout:   opts.StoreTimeout,
		publishTimeout: opts.PublishTimeout,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = defaultPublishTimeout
	}
	return s
}

type CreateCommand struct {
	OwnerID       types.ID
	Items         []Item
	TotalWeightKg float64
	Address       string
	Instructions  string
	ScheduledAt   time.Time
	TimeSlot      TimeSlot
}

// Patch holds the owner-editable fields; nil means unchanged.
type Patch struct {
	Items         *[]Item
	TotalWeightKg *float64
	Address       *string
	Instructions  *string
	ScheduledAt   *time.Time
	TimeSlot      *TimeSlot
}

func (p Patch) Empty() bool {
	return p.Items == nil && p.TotalWeightKg == nil && p.Address == nil &&
		p.Instructions == nil && p.ScheduledAt == nil && p.TimeSlot == nil
}

type EditCommand struct {
	ID    types.ID
	Actor types.Actor
	Patch Patch
}

type CancelCommand struct {
	ID    types.ID
	Actor types.Actor
}

type AssignCommand struct {
	ID          types.ID
	Actor       types.Actor
	Agent       AgentRef
	ScheduledAt time.Time
}

type CompleteCommand struct {
	ID    types.ID
	Actor types.Actor
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (p *Pickup, err error) {
	defer s.observe("create", time.Now(), &err)
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	p = &Pickup{
		ID:            types.NewID(),
		OwnerID:       cmd.OwnerID,
		Items:         append([]Item(nil), cmd.Items...),
		TotalWeightKg: cmd.TotalWeightKg,
		Address:       cmd.Address,
		Instructions:  cmd.Instructions,
		ScheduledAt:   cmd.ScheduledAt.UTC(),
		TimeSlot:      cmd.TimeSlot,
		Status:        StatusPending,
		StatusVersion: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.recompute()

	if _, err := call(ctx, s.storeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Create(ctx, p)
	}); err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{"pickup_id": p.ID, "owner_id": p.OwnerID, "points": p.AwardedPoints}), "pickup.created")
	view := ToView(p)
	s.publish(ctx,
		notice{realtime.UserRoom(p.OwnerID), realtime.EventPickupCreated, view},
		notice{realtime.OperatorsRoom, realtime.EventPickupCreated, view},
	)
	return p, nil
}

func (s *Service) Edit(ctx context.Context, cmd EditCommand) (p *Pickup, err error) {
	defer s.observe("edit", time.Now(), &err)
	if err := cmd.Patch.validate(); err != nil {
		return nil, err
	}

	cur, err := s.Get(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if cur.OwnerID != cmd.Actor.ID {
		return nil, ErrForbidden
	}
	if cur.Status != StatusPending {
		return nil, transitionConflict("edit", cur.Status)
	}

	next := cur.Clone()
	applyPatch(next, cmd.Patch)
	if cmd.Patch.Items != nil || cmd.Patch.TotalWeightKg != nil {
		next.recompute()
	}
	next.StatusVersion = cur.StatusVersion + 1
	next.UpdatedAt = s.now()

	if err := s.write(ctx, "edit", next, Change{Expected: cur.Status, Version: cur.StatusVersion, Actor: cmd.Actor}); err != nil {
		return nil, err
	}

	view := ToView(next)
	s.publish(ctx,
		notice{realtime.UserRoom(next.OwnerID), realtime.EventPickupUpdated, view},
		notice{realtime.OperatorsRoom, realtime.EventPickupUpdated, view},
	)
	return next, nil
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (p *Pickup, err error) {
	defer s.observe("cancel", time.Now(), &err)
	cur, err := s.Get(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if cur.OwnerID != cmd.Actor.ID && !cmd.Actor.IsOperator() {
		return nil, ErrForbidden
	}
	if !CanTransition(cur.Status, StatusCancelled) {
		return nil, transitionConflict("cancel", cur.Status)
	}

	now := s.now()
	next := cur.Clone()
	next.Status = StatusCancelled
	next.StatusVersion = cur.StatusVersion + 1
	next.UpdatedAt = now
	next.CancelledAt = &now

	if err := s.write(ctx, "cancel", next, Change{Expected: cur.Status, Version: cur.StatusVersion, Actor: cmd.Actor}); err != nil {
		return nil, err
	}

	payload := DeletedPayload{PickupID: next.ID, Version: next.StatusVersion}
	s.publish(ctx,
		notice{realtime.UserRoom(next.OwnerID), realtime.EventPickupDeleted, payload},
		notice{realtime.OperatorsRoom, realtime.EventPickupDeleted, payload},
	)
	return next, nil
}

func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (p *Pickup, err error) {
	defer s.observe("assign", time.Now(), &err)
	if !cmd.Actor.IsOperator() {
		return nil, ErrForbidden
	}
	f := fieldErrors{}
	if cmd.Agent.ID == "" {
		f.add("agentId", "is required")
	}
	if cmd.ScheduledAt.IsZero() {
		f.add("scheduledAt", "is required")
	}
	if err := f.err(); err != nil {
		return nil, err
	}

	cur, err := s.Get(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, StatusAssigned) {
		return nil, transitionConflict("assign", cur.Status)
	}

	now := s.now()
	agent := cmd.Agent
	next := cur.Clone()
	next.Status = StatusAssigned
	next.Agent = &agent
	next.ScheduledAt = cmd.ScheduledAt.UTC()
	next.StatusVersion = cur.StatusVersion + 1
	next.UpdatedAt = now
	next.AssignedAt = &now

	if err := s.write(ctx, "assign", next, Change{Expected: cur.Status, Version: cur.StatusVersion, Actor: cmd.Actor}); err != nil {
		return nil, err
	}

	view := ToView(next)
	s.publish(ctx,
		notice{realtime.OperatorsRoom, realtime.EventPickupAssigned, view},
		notice{realtime.UserRoom(next.OwnerID), realtime.EventPickupAssignedUser, view},
	)
	return next, nil
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (p *Pickup, err error) {
	defer s.observe("complete", time.Now(), &err)
	if !cmd.Actor.IsOperator() {
		return nil, ErrForbidden
	}
	cur, err := s.Get(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, StatusCompleted) {
		return nil, transitionConflict("complete", cur.Status)
	}

	now := s.now()
	next := cur.Clone()
	next.Status = StatusCompleted
	next.StatusVersion = cur.StatusVersion + 1
	next.UpdatedAt = now
	next.CompletedAt = &now

	change := Change{Expected: cur.Status, Version: cur.StatusVersion, Actor: cmd.Actor}
	res, err := call(ctx, s.storeTimeout, func(ctx context.Context) (completeResult, error) {
		totals, ok, err := s.repo.CompleteIf(ctx, next, change)
		return completeResult{totals: totals, ok: ok}, err
	})
	if err != nil {
		return nil, err
	}
	if !res.ok {
		return nil, lostUpdate("complete")
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{"pickup_id": next.ID, "op": "complete", "points": next.AwardedPoints}), "pickup.transition")

	view := ToView(next)
	s.publish(ctx,
		notice{realtime.UserRoom(next.OwnerID), realtime.EventPickupCompleted, view},
		notice{realtime.OperatorsRoom, realtime.EventPickupCompleted, view},
		notice{realtime.UserRoom(next.OwnerID), realtime.EventPointsAwarded, PointsAwardedPayload{
			PickupID:    next.ID,
			Points:      next.AwardedPoints,
			Gains:       view.Gains,
			TotalPoints: res.totals.Points,
			TotalGains:  ToTotalsView(res.totals).TotalGains,
		}},
	)
	return next, nil
}

type completeResult struct {
	totals Totals
	ok     bool
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return call(ctx, s.storeTimeout, func(ctx context.Context) (*Pickup, error) {
		return s.repo.Get(ctx, id)
	})
}

// GetFor returns the pickup when actor may see it: its owner, its agent or an operator.
func (s *Service) GetFor(ctx context.Context, id types.ID, actor types.Actor) (*Pickup, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsOperator() || p.OwnerID == actor.ID || (p.Agent != nil && p.Agent.ID == actor.ID) {
		return p, nil
	}
	return nil, ErrForbidden
}

// ListByOwner returns the owner's pickups, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Pickup, error) {
	out, err := call(ctx, s.storeTimeout, func(ctx context.Context) ([]*Pickup, error) {
		return s.repo.ListByOwner(ctx, ownerID)
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Service) ListByStatus(ctx context.Context, statuses ...Status) ([]*Pickup, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, invalid(map[string]string{"status": fmt.Sprintf("unknown status %q", st)})
		}
	}
	out, err := call(ctx, s.storeTimeout, func(ctx context.Context) ([]*Pickup, error) {
		return s.repo.ListByStatus(ctx, statuses...)
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Service) Totals(ctx context.Context, ownerID types.ID) (Totals, error) {
	return call(ctx, s.storeTimeout, func(ctx context.Context) (Totals, error) {
		return s.repo.Totals(ctx, ownerID)
	})
}

func (s *Service) History(ctx context.Context, id types.ID) ([]Event, error) {
	return call(ctx, s.storeTimeout, func(ctx context.Context) ([]Event, error) {
		return s.repo.History(ctx, id)
	})
}

func (s *Service) write(ctx context.Context, op string, next *Pickup, c Change) error {
	ok, err := call(ctx, s.storeTimeout, func(ctx context.Context) (bool, error) {
		return s.repo.UpdateIf(ctx, next, c)
	})
	if err != nil {
		return err
	}
	if !ok {
		return lostUpdate(op)
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"pickup_id": next.ID,
		"op":        op,
		"from":      c.Expected,
		"to":        next.Status,
		"version":   next.StatusVersion,
	}), "pickup.transition")
	return nil
}

type notice struct {
	room    string
	event   string
	payload any
}

// publish runs after the write has committed. Rooms are published to in parallel under one
// deadline; notices for the same room keep their order. Failures are logged and dropped.
func (s *Service) publish(ctx context.Context, notices ...notice) {
	if s.bus == nil || len(notices) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	var rooms []string
	byRoom := make(map[string][]notice, len(notices))
	for _, n := range notices {
		if _, ok := byRoom[n.room]; !ok {
			rooms = append(rooms, n.room)
		}
		byRoom[n.room] = append(byRoom[n.room], n)
	}

	var g errgroup.Group
	for _, room := range rooms {
		queue := byRoom[room]
		g.Go(func() error {
			for _, n := range queue {
				if err := s.bus.Publish(pctx, n.room, n.event, n.payload); err != nil {
					s.log.Warn(s.log.WithFields(ctx, map[string]any{"room": n.room, "event": n.event}), "pickup.publish.dropped", err)
					if pctx.Err() != nil {
						return nil
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	result := "ok"
	if err := *errp; err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeConflict:
			result = "conflict"
		case apperr.CodeValidation:
			result = "invalid"
		case apperr.CodeNotFound:
			result = "not_found"
		case apperr.CodeForbidden:
			result = "forbidden"
		default:
			result = "error"
		}
	}
	s.metrics.Observe(op, result, time.Since(start))
}

// call bounds fn by timeout. Errors that are not already coded become retryable storage errors.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := fn(cctx)
	if err == nil {
		return v, nil
	}
	if apperr.As(err) != nil {
		return v, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return v, apperr.Wrap(apperr.CodeStorage, ErrStorage, "pickup store timed out")
	}
	return v, apperr.Wrap(apperr.CodeStorage, err, "pickup store unavailable")
}

func applyPatch(p *Pickup, patch Patch) {
	if patch.Items != nil {
		p.Items = append([]Item(nil), (*patch.Items)...)
	}
	if patch.TotalWeightKg != nil {
		p.TotalWeightKg = *patch.TotalWeightKg
	}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	if patch.Instructions != nil {
		p.Instructions = *patch.Instructions
	}
	if patch.ScheduledAt != nil {
		p.ScheduledAt = patch.ScheduledAt.UTC()
	}
	if patch.TimeSlot != nil {
		p.TimeSlot = *patch.TimeSlot
	}
}

func sortNewestFirst(ps []*Pickup) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}
