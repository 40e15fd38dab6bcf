// Package websocket pushes session state changes to the browser tabs that
// share a session.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"threadline/middleware"
	"threadline/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	Time    int64  `json:"time"`
}

type delivery struct {
	sessionID string
	msg       []byte
}

// Hub tracks the live connections of every session.
type Hub struct {
	clients map[string]map[*Client]bool
	publish chan delivery
	done    chan struct{}
	stopped bool
	mu      sync.RWMutex

	upgrader websocket.Upgrader
	log      *zap.Logger
}

type Client struct {
	conn *websocket.Conn
	sess *session.Session
	send chan []byte
	hub  *Hub
}

func NewHub(logger *zap.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients: make(map[string]map[*Client]bool),
		publish: make(chan delivery, 256),
		done:    make(chan struct{}),
		log:     logger.Named("websocket"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Run delivers events until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			for id, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case d := <-h.publish:
			h.mu.RLock()
			var slow []*Client
			for c := range h.clients[d.sessionID] {
				select {
				case c.send <- d.msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.log.Warn("dropping slow client", zap.String("session_id", c.sess.ID))
				h.remove(c)
			}
		}
	}
}

func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	set, ok := h.clients[c.sess.ID]
	if !ok {
		set = make(map[*Client]bool)
		h.clients[c.sess.ID] = set
	}
	set[c] = true
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.sess.ID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.sess.ID)
	}
}

// Publish sends an event to every connection of sessionID. It never blocks
// the caller for long: events for a stopped hub are dropped.
func (h *Hub) Publish(sessionID, event string, payload any) {
	msg, err := json.Marshal(Event{Type: event, Payload: payload, Time: time.Now().Unix()})
	if err != nil {
		h.log.Error("marshal event failed", zap.String("type", event), zap.Error(err))
		return
	}
	select {
	case h.publish <- delivery{sessionID: sessionID, msg: msg}:
	case <-h.done:
	}
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Handler upgrades a request that already carries a session.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		if sess == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session required"})
			return
		}

		// Upgrade writes its own response; carry over the session cookie.
		var header http.Header
		if cookies := c.Writer.Header().Values("Set-Cookie"); len(cookies) > 0 {
			header = http.Header{"Set-Cookie": cookies}
		}
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, header)
		if err != nil {
			h.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			conn: conn,
			sess: sess,
			send: make(chan []byte, sendBuffer),
			hub:  h,
		}
		if !h.add(client) {
			_ = conn.Close()
			return
		}
		h.log.Debug("client registered", zap.String("session_id", sess.ID), zap.Int("connections", h.Connections()))

		client.sendEvent("connected", sess.State())

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) sendEvent(event string, payload any) {
	msg, err := json.Marshal(Event{Type: event, Payload: payload, Time: time.Now().Unix()})
	if err != nil {
		c.hub.log.Error("marshal event failed", zap.String("type", event), zap.Error(err))
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c.sess.ID][c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in struct {
			Type string `json:"type"`
		}
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				continue
			}
			return
		}

		switch in.Type {
		case "ping":
			c.sendEvent("pong", nil)
		case "state":
			c.sendEvent("state", c.sess.State())
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
