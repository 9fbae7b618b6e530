// README: Pickup lifecycle tests (transitions, validation, events, timeouts).
package pickup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/realtime"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusAssigned, StatusCompleted, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusAssigned}:   true,
		{StatusPending, StatusCancelled}:  true,
		{StatusAssigned, StatusCompleted}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCreateComputesPoints(t *testing.T) {
	cases := []struct {
		name       string
		items      []Item
		weight     float64
		wantPoints int64
		wantGains  string
	}{
		{"single plastic", []Item{{Material: points.Plastic, Quantity: 1, WeightKg: 0}}, 3, 501, "75.15"},
		{"plastic and paper share weight", []Item{{Material: points.Plastic, Quantity: 1}, {Material: points.Paper, Quantity: 2}}, 4, 440, "66.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, bus := newTestService(t, nil)
			p, err := svc.Create(context.Background(), createCommand(owner.ID, tc.items, tc.weight))
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if p.Status != StatusPending || p.Agent != nil {
				t.Fatalf("new pickup should be pending without agent, got %s %+v", p.Status, p.Agent)
			}
			if p.AwardedPoints != tc.wantPoints {
				t.Fatalf("points = %d, want %d", p.AwardedPoints, tc.wantPoints)
			}
			if got := p.Gains.StringFixed(2); got != tc.wantGains {
				t.Fatalf("gains = %s, want %s", got, tc.wantGains)
			}

			created := bus.named(realtime.EventPickupCreated)
			if len(created) != 2 {
				t.Fatalf("expected pickup-created to owner and operators, got %d", len(created))
			}
			if created[0].Room != realtime.UserRoom(owner.ID) || created[1].Room != realtime.OperatorsRoom {
				t.Fatalf("unexpected rooms %s, %s", created[0].Room, created[1].Room)
			}
			view, ok := created[0].Payload.(View)
			if !ok || view.ID != p.ID || string(view.Gains) != tc.wantGains {
				t.Fatalf("unexpected payload %+v", created[0].Payload)
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	valid := func() CreateCommand {
		return createCommand(owner.ID, []Item{{Material: points.Metal, Quantity: 1}}, 2)
	}
	cases := []struct {
		name  string
		mut   func(c *CreateCommand)
		field string
	}{
		{"empty items", func(c *CreateCommand) { c.Items = nil }, "items"},
		{"zero weight", func(c *CreateCommand) { c.TotalWeightKg = 0 }, "totalWeightKg"},
		{"negative weight", func(c *CreateCommand) { c.TotalWeightKg = -1 }, "totalWeightKg"},
		{"unknown time slot", func(c *CreateCommand) { c.TimeSlot = "midnight" }, "timeSlot"},
		{"missing schedule", func(c *CreateCommand) { c.ScheduledAt = time.Time{} }, "scheduledAt"},
		{"blank address", func(c *CreateCommand) { c.Address = "  " }, "address"},
		{"unknown material", func(c *CreateCommand) { c.Items[0].Material = "styrofoam" }, "items[0].materialType"},
		{"zero quantity", func(c *CreateCommand) { c.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"negative item weight", func(c *CreateCommand) { c.Items[0].WeightKg = -0.5 }, "items[0].weightKg"},
		{"total weight over limit", func(c *CreateCommand) { c.TotalWeightKg = 1e17 }, "totalWeightKg"},
		{"item weight over limit", func(c *CreateCommand) { c.Items[0].WeightKg = points.MaxWeightKg + 1 }, "items[0].weightKg"},
		{"missing owner", func(c *CreateCommand) { c.OwnerID = "" }, "ownerId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore()
			svc, bus := newTestService(t, store)
			cmd := valid()
			tc.mut(&cmd)

			_, err := svc.Create(context.Background(), cmd)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			details, _ := apperr.As(err).Details().(map[string]string)
			if _, ok := details[tc.field]; !ok {
				t.Fatalf("expected detail for %s, got %v", tc.field, details)
			}
			all, _ := store.ListByStatus(context.Background())
			if len(all) != 0 {
				t.Fatalf("nothing should be stored, found %d", len(all))
			}
			if len(bus.events) != 0 {
				t.Fatalf("nothing should be published, found %d", len(bus.events))
			}
		})
	}
}

func TestEditRecomputesWhilePending(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t, nil)
	p := mustCreate(t, svc)
	bus.reset()

	items := []Item{{Material: points.Electronics, Quantity: 1, WeightKg: 0.5}}
	addr := "99 Tahrir Sq"
	edited, err := svc.Edit(ctx, EditCommand{ID: p.ID, Actor: owner, Patch: Patch{Items: &items, Address: &addr}})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.AwardedPoints != 1000 || edited.Gains.StringFixed(2) != "150.00" {
		t.Fatalf("expected recomputed 1000/150.00, got %d/%s", edited.AwardedPoints, edited.Gains.StringFixed(2))
	}
	if edited.Address != addr || edited.StatusVersion != p.StatusVersion+1 {
		t.Fatalf("unexpected edited record %+v", edited)
	}
	if got := len(bus.named(realtime.EventPickupUpdated)); got != 2 {
		t.Fatalf("expected 2 pickup-updated events, got %d", got)
	}

	note := "leave at the gate"
	edited, err = svc.Edit(ctx, EditCommand{ID: p.ID, Actor: owner, Patch: Patch{Instructions: &note}})
	if err != nil {
		t.Fatalf("edit instructions: %v", err)
	}
	if edited.AwardedPoints != 1000 {
		t.Fatalf("points must not change without item or weight edits, got %d", edited.AwardedPoints)
	}
}

func TestEditRejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	p := mustCreate(t, svc)
	weight := 10.0

	if _, err := svc.Edit(ctx, EditCommand{ID: p.ID, Actor: stranger, Patch: Patch{TotalWeightKg: &weight}}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}
	if _, err := svc.Edit(ctx, EditCommand{ID: p.ID, Actor: owner}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty patch, got %v", err)
	}
	bad := 0.0
	if _, err := svc.Edit(ctx, EditCommand{ID: p.ID, Actor: owner, Patch: Patch{TotalWeightKg: &bad}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero weight, got %v", err)
	}
	if _, err := svc.Edit(ctx, EditCommand{ID: "missing", Actor: owner, Patch: Patch{TotalWeightKg: &weight}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssignThenEditConflicts(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t, nil)
	p := mustCreate(t, svc)
	bus.reset()

	at := baseTime.Add(96 * time.Hour)
	assigned, err := svc.Assign(ctx, AssignCommand{ID: p.ID, Actor: operator, Agent: agentX, ScheduledAt: at})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Status != StatusAssigned || assigned.Agent == nil || *assigned.Agent != agentX {
		t.Fatalf("unexpected assigned record %+v", assigned)
	}
	if !assigned.ScheduledAt.Equal(at) || assigned.AssignedAt == nil {
		t.Fatalf("schedule not stamped: %v %v", assigned.ScheduledAt, assigned.AssignedAt)
	}

	toOwner := bus.named(realtime.EventPickupAssignedUser)
	if len(toOwner) != 1 || toOwner[0].Room != realtime.UserRoom(owner.ID) {
		t.Fatalf("expected one pickup-assigned-user to owner, got %+v", toOwner)
	}
	view := toOwner[0].Payload.(View)
	if view.AssignedAgent == nil || view.AssignedAgent.Name != agentX.Name || view.AssignedAgent.Email != agentX.Email {
		t.Fatalf("agent display data missing from event: %+v", view.AssignedAgent)
	}
	toOps := bus.named(realtime.EventPickupAssigned)
	if len(toOps) != 1 || toOps[0].Room != realtime.OperatorsRoom {
		t.Fatalf("expected one pickup-assigned to operators, got %+v", toOps)
	}

	weight := 8.0
	_, err = svc.Edit(ctx, EditCommand{ID: p.ID, Actor: owner, Patch: Patch{TotalWeightKg: &weight}})
	assertConflict(t, err)
	stored := assertStatus(t, svc, p.ID, StatusAssigned)
	if stored.TotalWeightKg != 3 || stored.AwardedPoints != 501 {
		t.Fatalf("edit conflict must not mutate stored fields: %+v", stored)
	}
}

func TestAssignRequiresOperatorAndSchedule(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	p := mustCreate(t, svc)

	if _, err := svc.Assign(ctx, AssignCommand{ID: p.ID, Actor: owner, Agent: agentX, ScheduledAt: baseTime}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Assign(ctx, AssignCommand{ID: p.ID, Actor: operator, Agent: agentX}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	assertStatus(t, svc, p.ID, StatusPending)
}

func TestCompleteAwardsPointsOnce(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t, nil)
	p := mustCreate(t, svc)
	mustAssign(t, svc, p.ID)
	bus.reset()

	done, err := svc.Complete(ctx, CompleteCommand{ID: p.ID, Actor: operator})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil || done.Agent == nil {
		t.Fatalf("unexpected completed record %+v", done)
	}

	completed := bus.named(realtime.EventPickupCompleted)
	if len(completed) != 2 {
		t.Fatalf("expected pickup-completed to owner and operators, got %d", len(completed))
	}
	awarded := bus.named(realtime.EventPointsAwarded)
	if len(awarded) != 1 || awarded[0].Room != realtime.UserRoom(owner.ID) {
		t.Fatalf("expected exactly one points-awarded to owner, got %+v", awarded)
	}
	payload := awarded[0].Payload.(PointsAwardedPayload)
	if payload.PickupID != p.ID || payload.Points != 501 || payload.Gains != "75.15" {
		t.Fatalf("unexpected points payload %+v", payload)
	}
	if payload.TotalPoints != 501 || payload.TotalGains != "75.15" {
		t.Fatalf("unexpected running totals %+v", payload)
	}

	_, err = svc.Complete(ctx, CompleteCommand{ID: p.ID, Actor: operator})
	assertConflict(t, err)
	again := assertStatus(t, svc, p.ID, StatusCompleted)
	if again.AwardedPoints != done.AwardedPoints || !again.Gains.Equal(done.Gains) {
		t.Fatalf("frozen rewards changed: %d/%s vs %d/%s", again.AwardedPoints, again.Gains, done.AwardedPoints, done.Gains)
	}
	if got := len(bus.named(realtime.EventPointsAwarded)); got != 1 {
		t.Fatalf("points-awarded must fire once, got %d", got)
	}

	totals, err := svc.Totals(ctx, owner.ID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Points != 501 || totals.Gains.StringFixed(2) != "75.15" {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestTotalsAccumulateAcrossPickups(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t, nil)
	for i := 0; i < 2; i++ {
		p := mustCreate(t, svc)
		mustAssign(t, svc, p.ID)
		if _, err := svc.Complete(ctx, CompleteCommand{ID: p.ID, Actor: operator}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	awarded := bus.named(realtime.EventPointsAwarded)
	last := awarded[len(awarded)-1].Payload.(PointsAwardedPayload)
	if last.TotalPoints != 1002 || last.TotalGains != "150.30" {
		t.Fatalf("unexpected running totals %+v", last)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cancels pending", func(t *testing.T) {
		svc, bus := newTestService(t, nil)
		p := mustCreate(t, svc)
		bus.reset()
		cancelled, err := svc.Cancel(ctx, CancelCommand{ID: p.ID, Actor: owner})
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.Status != StatusCancelled || cancelled.CancelledAt == nil {
			t.Fatalf("unexpected cancelled record %+v", cancelled)
		}
		deleted := bus.named(realtime.EventPickupDeleted)
		if len(deleted) != 2 {
			t.Fatalf("expected pickup-deleted to owner and operators, got %d", len(deleted))
		}
		if deleted[0].Payload.(DeletedPayload).PickupID != p.ID {
			t.Fatalf("unexpected payload %+v", deleted[0].Payload)
		}
		// record is kept, only its status changes
		assertStatus(t, svc, p.ID, StatusCancelled)
	})

	t.Run("operator cancels pending", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		p := mustCreate(t, svc)
		if _, err := svc.Cancel(ctx, CancelCommand{ID: p.ID, Actor: operator}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		p := mustCreate(t, svc)
		if _, err := svc.Cancel(ctx, CancelCommand{ID: p.ID, Actor: stranger}); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
		assertStatus(t, svc, p.ID, StatusPending)
	})

	t.Run("assigned cannot be cancelled", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		p := mustCreate(t, svc)
		mustAssign(t, svc, p.ID)
		_, err := svc.Cancel(ctx, CancelCommand{ID: p.ID, Actor: owner})
		assertConflict(t, err)
		assertStatus(t, svc, p.ID, StatusAssigned)
	})
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	pending := mustCreate(t, svc)
	_, err := svc.Complete(ctx, CompleteCommand{ID: pending.ID, Actor: operator})
	assertConflict(t, err)
	if msg := apperr.As(err).Message(); msg != "cannot complete pickup: status is pending" {
		t.Fatalf("conflict should name the transition and status, got %q", msg)
	}
	assertStatus(t, svc, pending.ID, StatusPending)

	cancelled := mustCreate(t, svc)
	if _, err := svc.Cancel(ctx, CancelCommand{ID: cancelled.ID, Actor: owner}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = svc.Assign(ctx, AssignCommand{ID: cancelled.ID, Actor: operator, Agent: agentX, ScheduledAt: baseTime})
	assertConflict(t, err)
	_, err = svc.Cancel(ctx, CancelCommand{ID: cancelled.ID, Actor: owner})
	assertConflict(t, err)
	assertStatus(t, svc, cancelled.ID, StatusCancelled)

	assigned := mustCreate(t, svc)
	mustAssign(t, svc, assigned.ID)
	_, err = svc.Assign(ctx, AssignCommand{ID: assigned.ID, Actor: operator, Agent: AgentRef{ID: "agent-y"}, ScheduledAt: baseTime})
	assertConflict(t, err)
	stored := assertStatus(t, svc, assigned.ID, StatusAssigned)
	if stored.Agent.ID != agentX.ID {
		t.Fatalf("agent changed on rejected assign: %+v", stored.Agent)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	svc, bus := newTestService(t, nil)
	bus.err = errors.New("bus unreachable")

	p := mustCreate(t, svc)
	mustAssign(t, svc, p.ID)
	if _, err := svc.Complete(context.Background(), CompleteCommand{ID: p.ID, Actor: operator}); err != nil {
		t.Fatalf("complete should succeed with a broken bus: %v", err)
	}
	assertStatus(t, svc, p.ID, StatusCompleted)
}

func TestEditAfterCompleteConflicts(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t, nil)
	p := mustCreate(t, svc)
	mustAssign(t, svc, p.ID)
	done, err := svc.Complete(ctx, CompleteCommand{ID: p.ID, Actor: operator})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	bus.reset()

	weight := 20.0
	address := "somewhere else"
	items := []Item{{Material: points.Electronics, Quantity: 4}}
	_, err = svc.Edit(ctx, EditCommand{ID: p.ID, Actor: owner, Patch: Patch{Items: &items, TotalWeightKg: &weight, Address: &address}})
	assertConflict(t, err)

	stored := assertStatus(t, svc, p.ID, StatusCompleted)
	if stored.TotalWeightKg != 3 || stored.Address != done.Address || len(stored.Items) != 1 || stored.Items[0].Material != points.Plastic {
		t.Fatalf("edit conflict must not mutate stored fields: %+v", stored)
	}
	if stored.AwardedPoints != 501 || !stored.Gains.Equal(done.Gains) || stored.StatusVersion != done.StatusVersion {
		t.Fatalf("frozen points changed: %+v", stored)
	}
	if len(bus.named(realtime.EventPickupUpdated)) != 0 {
		t.Fatalf("rejected edit must not publish")
	}
}

// stallingBus blocks every publish until its context ends.
type stallingBus struct {
	mu    sync.Mutex
	calls int
}

func (b *stallingBus) Publish(ctx context.Context, room, event string, payload any) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func TestStalledPublishIsDroppedAfterCommit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	quick, _ := newTestService(t, repo)
	p := mustCreate(t, quick)
	mustAssign(t, quick, p.ID)

	bus := &stallingBus{}
	timeout := 20 * time.Millisecond
	svc := NewService(repo, bus, Options{StoreTimeout: time.Second, PublishTimeout: timeout})

	start := time.Now()
	done, err := svc.Complete(ctx, CompleteCommand{ID: p.ID, Actor: operator})
	took := time.Since(start)
	if err != nil {
		t.Fatalf("complete should succeed when the bus stalls: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	// three notices over two rooms share one deadline
	if took > 10*timeout {
		t.Fatalf("complete held the caller for %s with a %s publish timeout", took, timeout)
	}
	assertStatus(t, svc, p.ID, StatusCompleted)
	totals, err := svc.Totals(ctx, owner.ID)
	if err != nil || totals.Points != 501 {
		t.Fatalf("totals not committed: %+v %v", totals, err)
	}
}

func TestPublishKeepsOrderWithinRoom(t *testing.T) {
	svc, bus := newTestService(t, nil)
	p := mustCreate(t, svc)
	mustAssign(t, svc, p.ID)
	bus.reset()
	if _, err := svc.Complete(context.Background(), CompleteCommand{ID: p.ID, Actor: operator}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	var toOwner []string
	bus.mu.Lock()
	for _, e := range bus.events {
		if e.Room == realtime.UserRoom(owner.ID) {
			toOwner = append(toOwner, e.Event)
		}
	}
	bus.mu.Unlock()
	if len(toOwner) != 2 || toOwner[0] != realtime.EventPickupCompleted || toOwner[1] != realtime.EventPointsAwarded {
		t.Fatalf("unexpected owner event order %v", toOwner)
	}
	if len(bus.named(realtime.EventPickupCompleted)) != 2 {
		t.Fatalf("expected pickup-completed in both rooms")
	}
}

func TestHistoryRecordsTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	p := mustCreate(t, svc)
	mustAssign(t, svc, p.ID)
	if _, err := svc.Complete(ctx, CompleteCommand{ID: p.ID, Actor: operator}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	events, err := svc.History(ctx, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(events))
	}
	if events[0].ToStatus != StatusAssigned || events[1].ToStatus != StatusCompleted || events[1].ActorID != operator.ID {
		t.Fatalf("unexpected history %+v", events)
	}
}

func TestListsAndVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	first := mustCreate(t, svc)
	second := mustCreate(t, svc)
	mustAssign(t, svc, second.ID)
	if _, err := svc.Create(ctx, createCommand(stranger.ID, []Item{{Material: points.Wood, Quantity: 1}}, 1)); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := svc.ListByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != second.ID || mine[1].ID != first.ID {
		t.Fatalf("expected owner pickups newest first, got %d", len(mine))
	}

	pending, err := svc.ListByStatus(ctx, StatusPending)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if _, err := svc.ListByStatus(ctx, "archived"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}

	if _, err := svc.GetFor(ctx, first.ID, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger must not read another user's pickup, got %v", err)
	}
	if _, err := svc.GetFor(ctx, second.ID, types.Actor{ID: agentX.ID, Role: types.RoleAgent}); err != nil {
		t.Fatalf("assigned agent should read the pickup: %v", err)
	}
	if _, err := svc.GetFor(ctx, first.ID, operator); err != nil {
		t.Fatalf("operator should read any pickup: %v", err)
	}
}

type slowRepo struct {
	*MemoryStore
}

func (s slowRepo) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenRepo struct {
	*MemoryStore
}

func (b brokenRepo) Create(ctx context.Context, p *Pickup) error {
	return errors.New("connection refused")
}

func TestStoreFailuresSurfaceAsRetryableStorageErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewService(slowRepo{NewMemoryStore()}, nil, Options{StoreTimeout: 20 * time.Millisecond})
	start := time.Now()
	_, err := svc.Get(ctx, "any")
	if time.Since(start) > time.Second {
		t.Fatalf("store call was not bounded")
	}
	typed := apperr.As(err)
	if typed == nil || typed.Code() != apperr.CodeStorage || !typed.Retryable() {
		t.Fatalf("expected retryable storage error, got %v", err)
	}

	svc = NewService(brokenRepo{NewMemoryStore()}, nil, Options{})
	_, err = svc.Create(ctx, createCommand(owner.ID, []Item{{Material: points.Glass, Quantity: 1}}, 1))
	if !apperr.HasCode(err, apperr.CodeStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
