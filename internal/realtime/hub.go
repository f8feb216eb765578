// Package realtime keeps push channels open to connected players and
// delivers messages to them over SSE or WebSocket.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/guessgame/internal/dependencies/clock"
	"github.com/mcoot/guessgame/internal/model"
)

var (
	ErrNotConnected = errors.New("user has no open channel")
	ErrBufferFull   = errors.New("client buffer full, message dropped")
	ErrHubClosed    = errors.New("hub closed")
)

// Buffer size for outgoing messages
const sendBufferSize = 256

// Listener is told when a user's first channel opens and last one closes
type Listener interface {
	OnConnect(ctx context.Context, userID model.UserID)
	OnDisconnect(ctx context.Context, userID model.UserID)
}

// Client is one open channel. A user may hold several.
type Client struct {
	id          string
	userID      model.UserID
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a client for userID. It is stamped with the hub's
// clock when registered.
func NewClient(userID model.UserID) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// ID returns the client's unique connection id
func (c *Client) ID() string { return c.id }

// ConnectedAt returns when the hub registered the client
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Send returns the channel of messages for this client. It is closed when
// the client is unregistered or the hub stops.
func (c *Client) Send() <-chan []byte { return c.send }

type request struct {
	client *Client
	done   chan struct{}
}

// Hub tracks clients by user and fans messages out to them
type Hub struct {
	clients  map[model.UserID]map[*Client]struct{}
	mu       sync.RWMutex
	listener Listener
	clock    clock.Clock
	logger   *slog.Logger

	register   chan request
	unregister chan request
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub. listener may be nil.
func NewHub(listener Listener, clk clock.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[model.UserID]map[*Client]struct{}),
		listener:   listener,
		clock:      clk,
		logger:     logger.With(slog.String("component", "realtime")),
		register:   make(chan request),
		unregister: make(chan request),
		done:       make(chan struct{}),
	}
}

// SetListener replaces the listener. Call before Run.
func (h *Hub) SetListener(l Listener) {
	h.listener = l
}

// Run starts the hub's event loop. It returns when ctx is done or the hub
// is closed. Listener callbacks run on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	for {
		select {
		case req := <-h.register:
			req.client.connectedAt = h.clock.Now()
			h.mu.Lock()
			userClients, ok := h.clients[req.client.userID]
			if !ok {
				userClients = make(map[*Client]struct{})
				h.clients[req.client.userID] = userClients
			}
			userClients[req.client] = struct{}{}
			first := len(userClients) == 1
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.String("user_id", string(req.client.userID)),
				slog.String("client_id", req.client.id),
				slog.Bool("first_for_user", first))

			if first && h.listener != nil {
				h.listener.OnConnect(ctx, req.client.userID)
			}
			close(req.done)

		case req := <-h.unregister:
			last := false
			h.mu.Lock()
			userClients, ok := h.clients[req.client.userID]
			if _, registered := userClients[req.client]; ok && registered {
				delete(userClients, req.client)
				close(req.client.send)
				if len(userClients) == 0 {
					delete(h.clients, req.client.userID)
					last = true
				}
				h.mu.Unlock()

				h.logger.Info("client unregistered",
					slog.String("user_id", string(req.client.userID)),
					slog.String("client_id", req.client.id),
					slog.Duration("connection_duration", h.clock.Now().Sub(req.client.connectedAt)))

				if last && h.listener != nil {
					h.listener.OnDisconnect(ctx, req.client.userID)
				}
			} else {
				h.mu.Unlock()
			}
			close(req.done)

		case <-ctx.Done():
			h.Close()
			h.shutdown()
			return

		case <-h.done:
			h.shutdown()
			return
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	count := 0
	for userID, userClients := range h.clients {
		for client := range userClients {
			close(client.send)
			count++
		}
		delete(h.clients, userID)
	}
	h.mu.Unlock()
	h.logger.Info("realtime hub stopped", slog.Int("disconnected_clients", count))
}

func (h *Hub) submit(ch chan request, client *Client) error {
	req := request{client: client, done: make(chan struct{})}
	select {
	case ch <- req:
	case <-h.done:
		return ErrHubClosed
	}
	<-req.done
	return nil
}

// Register adds a client and returns once any connect callback has run
func (h *Hub) Register(client *Client) error {
	return h.submit(h.register, client)
}

// Unregister removes a client and returns once any disconnect callback has run
func (h *Hub) Unregister(client *Client) {
	_ = h.submit(h.unregister, client)
}

// Deliver queues msg on every channel userID has open. It never blocks:
// a client whose buffer is full misses the message.
func (h *Hub) Deliver(ctx context.Context, userID model.UserID, msg []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userClients := h.clients[userID]
	if len(userClients) == 0 {
		return ErrNotConnected
	}

	sent := 0
	for client := range userClients {
		select {
		case client.send <- msg:
			sent++
		default:
			h.logger.Warn("message dropped - client buffer full",
				slog.String("user_id", string(userID)),
				slog.String("client_id", client.id))
		}
	}
	if sent == 0 {
		return ErrBufferFull
	}
	return nil
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of open channels
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, userClients := range h.clients {
		n += len(userClients)
	}
	return n
}

// IsConnected reports whether userID has at least one open channel
func (h *Hub) IsConnected(userID model.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
