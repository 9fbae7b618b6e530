// README: Websocket transport for the hub: authenticate handshake, room joins, read/write pumps.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

const maxFrameBytes = 4096

// Identity is the caller resolved by the HTTP auth layer before the upgrade.
type Identity struct {
	UserID types.ID
	Role   types.Role
}

type HandlerConfig struct {
	SendBuffer     int
	PingPeriod     time.Duration
	WriteWait      time.Duration
	AllowedOrigins []string
}

type Handler struct {
	hub      *Hub
	cfg      HandlerConfig
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, cfg HandlerConfig, log *logger.Logger) *Handler {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 30 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{hub: hub, cfg: cfg, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

// Serve upgrades the request and blocks until the connection ends.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, id Identity) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn(r.Context(), "realtime.upgrade.failed", err)
		return
	}

	client := h.hub.Register(id.UserID, id.Role, h.cfg.SendBuffer)
	ctx := h.log.WithFields(r.Context(), map[string]any{"conn_id": client.ID, "user_id": id.UserID})
	h.log.Info(ctx, "realtime.connected")

	go h.writePump(conn, client)
	h.readPump(ctx, conn, client, id)

	h.hub.Unregister(client)
	_ = conn.Close()
	h.log.Info(ctx, "realtime.disconnected")
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, c *Client, id Identity) {
	pongWait := h.cfg.PingPeriod * 10 / 9
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	authenticated := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn(ctx, "realtime.read.failed", err)
			}
			return
		}
		select {
		case <-c.Done():
			return
		default:
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(c, "malformed frame")
			continue
		}

		switch env.Event {
		case EventAuthenticate:
			var claimed string
			if err := json.Unmarshal(env.Data, &claimed); err != nil || strings.TrimSpace(claimed) == "" {
				h.sendError(c, "authenticate requires a user id")
				continue
			}
			if types.ID(claimed) != id.UserID {
				h.log.Warn(h.log.WithField(ctx, "claimed_user_id", claimed), "realtime.authenticate.mismatch", nil)
				h.sendError(c, "user id does not match session")
				continue
			}
			if !authenticated {
				h.hub.Join(c, UserRoom(id.UserID))
				if id.Role == types.RoleOperator {
					h.hub.Join(c, OperatorsRoom)
				}
				authenticated = true
			}
			frame, err := Encode(EventAuthenticated, AuthenticatedPayload{UserID: id.UserID, Rooms: h.hub.Rooms(c)})
			if err == nil {
				c.enqueue(frame)
			}
		default:
			if !authenticated {
				h.sendError(c, "authenticate first")
				continue
			}
			h.sendError(c, "unsupported event "+env.Event)
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame := <-c.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *Handler) sendError(c *Client, msg string) {
	if frame, err := Encode(EventError, ErrorPayload{Message: msg}); err == nil {
		c.enqueue(frame)
	}
}
