// README: Reference subscriber that mirrors server pickup state: snapshot on every (re)connect, then incremental events.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/pickup"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/realtime"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

type Config struct {
	// URL is the websocket endpoint, e.g. ws://host/ws.
	URL     string
	UserID  types.ID
	Header  http.Header
	Fetcher Fetcher

	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *logger.Logger
}

type Totals struct {
	Points int64
	Gains  string
}

type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu         sync.RWMutex
	pickups    map[types.ID]pickup.View
	removed    map[types.ID]int // version at which a pickup was cancelled
	totals     Totals
	reconciles int
	seen       map[string]int
}

func New(cfg Config) *Client {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Client{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		pickups: make(map[types.ID]pickup.View),
		removed: make(map[types.ID]int),
		seen:    make(map[string]int),
	}
}

// Run keeps a session open until ctx ends, reconnecting with capped exponential backoff.
// A session that outlived MaxBackoff restarts the backoff from MinBackoff.
func (c *Client) Run(ctx context.Context) error {
	log := c.cfg.Logger
	backoff := c.backoff()
	for {
		started := time.Now()
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > c.cfg.MaxBackoff {
			backoff = c.backoff()
		}
		wait, _ := backoff.Next()
		log.Warn(log.WithField(ctx, "retry_in", wait.String()), "syncclient.session.ended", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Client) backoff() retry.Backoff {
	return retry.WithCappedDuration(c.cfg.MaxBackoff, retry.NewExponential(c.cfg.MinBackoff))
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := c.authenticate(conn); err != nil {
		return err
	}

	// Events that arrive while the snapshot loads wait in the socket buffer and are
	// applied afterwards; stale ones are discarded by version.
	if err := c.Reconcile(ctx); err != nil {
		return err
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var env realtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if err := c.Apply(env); err != nil {
			c.cfg.Logger.Warn(c.cfg.Logger.WithField(ctx, "event", env.Event), "syncclient.apply.failed", err)
		}
	}
}

func (c *Client) authenticate(conn *websocket.Conn) error {
	frame, err := realtime.Encode(realtime.EventAuthenticate, string(c.cfg.UserID))
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
		var env realtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch env.Event {
		case realtime.EventAuthenticated:
			return nil
		case realtime.EventError:
			var p realtime.ErrorPayload
			_ = json.Unmarshal(env.Data, &p)
			return fmt.Errorf("authenticate rejected: %s", p.Message)
		}
	}
}

// Reconcile replaces local pickups, and totals when the fetcher provides them, with the server's.
func (c *Client) Reconcile(ctx context.Context) error {
	if c.cfg.Fetcher == nil {
		return errors.New("no fetcher configured")
	}
	views, err := c.cfg.Fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	var totals *Totals
	if tf, ok := c.cfg.Fetcher.(TotalsFetcher); ok {
		tv, err := tf.FetchTotals(ctx)
		if err != nil {
			return fmt.Errorf("reconcile totals: %w", err)
		}
		totals = &Totals{Points: tv.TotalPoints, Gains: tv.TotalGains.String()}
	}

	next := make(map[types.ID]pickup.View, len(views))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range views {
		// cancelled pickups are announced as deletions, keep the two paths consistent
		if v.Status == pickup.StatusCancelled {
			c.tombstoneLocked(v.ID, v.Version)
			continue
		}
		next[v.ID] = v
	}
	c.pickups = next
	if totals != nil {
		c.totals = *totals
	}
	c.reconciles++
	return nil
}

// tombstoneLocked records a cancellation. Cancelled is terminal, so an unversioned
// deletion suppresses every later event for the pickup.
func (c *Client) tombstoneLocked(id types.ID, version int) {
	if version <= 0 {
		version = math.MaxInt
	}
	if version > c.removed[id] {
		c.removed[id] = version
	}
}

// Apply folds one bus event into local state.
func (c *Client) Apply(env realtime.Envelope) error {
	switch env.Event {
	case realtime.EventPickupCreated, realtime.EventPickupUpdated, realtime.EventPickupAssigned,
		realtime.EventPickupAssignedUser, realtime.EventPickupCompleted:
		var v pickup.View
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return err
		}
		c.mu.Lock()
		if gone, ok := c.removed[v.ID]; ok && v.Version <= gone {
			c.mu.Unlock()
			return nil
		}
		if cur, ok := c.pickups[v.ID]; !ok || v.Version >= cur.Version {
			c.pickups[v.ID] = v
		}
		c.seen[env.Event]++
		c.mu.Unlock()
	case realtime.EventPickupDeleted:
		var p pickup.DeletedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		c.mu.Lock()
		delete(c.pickups, p.PickupID)
		c.tombstoneLocked(p.PickupID, p.Version)
		c.seen[env.Event]++
		c.mu.Unlock()
	case realtime.EventPointsAwarded:
		var p pickup.PointsAwardedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		c.mu.Lock()
		c.totals = Totals{Points: p.TotalPoints, Gains: p.TotalGains.String()}
		c.seen[env.Event]++
		c.mu.Unlock()
	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
	return nil
}

func (c *Client) Get(id types.ID) (pickup.View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.pickups[id]
	return v, ok
}

// Snapshot returns local pickups, newest first.
func (c *Client) Snapshot() []pickup.View {
	c.mu.RLock()
	out := make([]pickup.View, 0, len(c.pickups))
	for _, v := range c.pickups {
		out = append(out, v)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (c *Client) Totals() Totals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totals
}

// Reconciles counts completed snapshot loads.
func (c *Client) Reconciles() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconciles
}

// Seen counts applied events by name.
func (c *Client) Seen(event string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seen[event]
}
