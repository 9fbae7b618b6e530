// README: In-process room registry and fan-out. Delivery is best-effort and at-most-once.
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/metrics"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

// Client is one subscriber connection with a bounded outbound queue.
type Client struct {
	ID     string
	UserID types.ID
	Role   types.Role

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(userID types.ID, role types.Role, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// Send returns the outbound queue drained by the transport.
func (c *Client) Send() <-chan []byte { return c.send }

// Done is closed when the client has been shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

// enqueue never blocks; a full queue drops the frame.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
	log     *logger.Logger
	metrics *metrics.BusMetrics
}

func NewHub(log *logger.Logger, m *metrics.BusMetrics) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
		log:     log,
		metrics: m,
	}
}

// Register creates a client tracked by the hub. It joins no rooms until Join is called.
func (h *Hub) Register(userID types.ID, role types.Role, buffer int) *Client {
	c := newClient(userID, role, buffer)
	h.mu.Lock()
	h.joined[c] = make(map[string]struct{})
	h.mu.Unlock()
	h.metrics.ConnOpened()
	return c
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.joined[c]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// LeaveAll removes c from every room it joined.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.joined[c] {
		h.leaveLocked(c, room)
	}
}

// Unregister removes c from every room and shuts it down.
func (h *Hub) Unregister(c *Client) {
	h.LeaveAll(c)
	h.mu.Lock()
	_, ok := h.joined[c]
	delete(h.joined, c)
	h.mu.Unlock()
	c.close()
	if ok {
		h.metrics.ConnClosed()
	}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.joined[c]; ok {
		delete(rooms, room)
	}
}

// Rooms lists the rooms c has joined.
func (h *Hub) Rooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.joined[c]))
	for room := range h.joined[c] {
		out = append(out, room)
	}
	return out
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish encodes once and fans out to the room's current members.
func (h *Hub) Publish(ctx context.Context, room, event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	h.Deliver(ctx, room, event, frame)
	return nil
}

// Deliver pushes an encoded frame to room members and returns how many accepted it.
func (h *Hub) Deliver(ctx context.Context, room, event string, frame []byte) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	h.metrics.Published(event)
	delivered := 0
	for _, c := range members {
		if c.enqueue(frame) {
			delivered++
			continue
		}
		h.metrics.Dropped()
		h.log.Warn(h.log.WithFields(ctx, map[string]any{"room": room, "event": event, "conn_id": c.ID}), "realtime.frame.dropped", nil)
	}
	return delivered
}

// CloseAll shuts down every registered client. Used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.joined))
	for c := range h.joined {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
}
