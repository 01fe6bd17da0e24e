package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

const writeWait = 10 * time.Second

type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// client serializes writes to one websocket connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// RealtimeHub tracks live websocket connections per user and pushes events
// addressed to them. It is a fan-out sink.
type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

var _ domain.Sink = (*RealtimeHub)(nil)

func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{clients: make(map[string]map[*client]struct{})}
}

func (h *RealtimeHub) Name() string { return "websocket" }

func (h *RealtimeHub) register(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
}

func (h *RealtimeHub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Connected reports how many live connections userID has.
func (h *RealtimeHub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Deliver writes evt to every connection of its recipient. Users with no
// connection are skipped.
func (h *RealtimeHub) Deliver(_ context.Context, evt domain.Event) error {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[evt.RecipientID]))
	for c := range h.clients[evt.RecipientID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	payload, err := json.Marshal(wsEvent{Type: string(evt.Type), Data: evt.Data})
	if err != nil {
		return err
	}
	for _, c := range targets {
		if err := c.write(payload); err != nil {
			log.Debug().Err(err).Str("user_id", evt.RecipientID).Msg("dropping websocket client")
			h.unregister(evt.RecipientID, c)
			_ = c.conn.Close()
		}
	}
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades an authenticated request and keeps the connection
// registered until the client goes away.
// GET /ws?token=...
func (h *RealtimeHub) Serve(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := &client{conn: ws}
	h.register(userID, cl)
	defer func() {
		h.unregister(userID, cl)
		_ = ws.Close()
	}()

	// server push only; reads just detect disconnects
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return nil
		}
	}
}
