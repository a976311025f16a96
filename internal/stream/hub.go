// Package stream pushes recommendation updates to websocket subscribers.
package stream

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/metrics"
)

// Message types pushed to subscribers
const (
	MessageTypeRecommendations = "recommendations"
	MessageTypeBacktest        = "backtest"
)

// Message is the envelope written to every subscriber
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active subscribers and fans messages out to them
type Hub struct {
	clients   map[*client]bool
	clientsMu sync.RWMutex

	broadcast  chan Message
	registerC  chan *client
	unregister chan *client
	done       chan struct{}
	ctx        context.Context

	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewHub creates a hub. allowedOrigins empty or containing "*" accepts
// every origin.
func NewHub(allowedOrigins []string, logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 16),
		registerC:  make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Run starts the hub's main loop; it returns when ctx is done. Subscribers
// are only accepted while Run is active.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.registerC:
			h.clientsMu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.clientsMu.Unlock()
			metrics.UpdateStreamSubscribers(n)
			h.logger.WithFields(logrus.Fields{"client_id": c.id, "total": n}).Debug("Subscriber connected")

		case c := <-h.unregister:
			h.removeClient(c)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Broadcast queues a message for every subscriber. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Broadcast(msgType string, payload interface{}) bool {
	msg := Message{Type: msgType, Payload: payload, Timestamp: time.Now()}
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.logger.WithField("type", msgType).Warn("Broadcast queue full, dropping message")
		return false
	}
}

// ClientCount returns the number of active subscribers
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket subscription
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	c := newClient(uuid.New().String(), conn, h)
	select {
	case h.registerC <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump(h.ctx)
	go c.readPump()
}

func (h *Hub) unregisterClient(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) removeClient(c *client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.clientsMu.Unlock()
	metrics.UpdateStreamSubscribers(n)
}

func (h *Hub) fanOut(msg Message) {
	h.clientsMu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if !c.trySend(msg) {
			h.logger.WithField("client_id", c.id).Warn("Subscriber too slow, disconnecting")
			h.removeClient(c)
		}
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.UpdateStreamSubscribers(0)
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set[origin]
	}
}
