package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/berfenger/pillbox2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsSendBuffer   = 16
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// Hub fans device state snapshots out to websocket clients.
type Hub struct {
	clients map[*wsClient]struct{}
	mu      sync.Mutex
	sub     *eventstream.Subscription
	es      *eventstream.EventStream
	logger  *zap.Logger
}

type wsClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func NewHub(es *eventstream.EventStream, logger *zap.Logger) *Hub {
	h := &Hub{
		clients: make(map[*wsClient]struct{}),
		es:      es,
		logger:  logger.With(zap.String("component", "ws")),
	}
	if es != nil {
		h.sub = es.Subscribe(func(evt any) {
			if ev, ok := evt.(domain.DeviceStateUpdateEvent); ok {
				h.Broadcast(ev)
			}
		})
	}
	return h
}

func (h *Hub) Broadcast(ev domain.DeviceStateUpdateEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("ws: marshal error", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// slow consumer
			h.detachLocked(c)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close drops every client and stops listening to the event stream.
func (h *Hub) Close() {
	if h.sub != nil {
		h.es.Unsubscribe(h.sub)
		h.sub = nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.detachLocked(c)
	}
}

func (h *Hub) attach(conn *websocket.Conn, first []byte) *wsClient {
	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}
	if first != nil {
		c.send <- first
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("ws: client attached", zap.String("remote", conn.RemoteAddr().String()))
	return c
}

func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
}

func (h *Hub) detachLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.closeOnce.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
	h.logger.Debug("ws: client detached")
}

func (c *wsClient) writePump() {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Warn("ws: write error", zap.Error(err))
				c.hub.detach(c)
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				c.hub.logger.Warn("ws: ping error", zap.Error(err))
				c.hub.detach(c)
				return
			}
		}
	}
}

// readPump only keeps the connection alive, the stream is one way.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(1 << 12)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	defer c.hub.detach(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("ws: read error", zap.Error(err))
			}
			return
		}
	}
}
