package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/pixelflow/logger"
)

// Frame is one event queued for a client.
type Frame struct {
	Event string
	Data  []byte
}

// Client is a connected SSE subscriber.
type Client struct {
	id       string
	metadata map[string]string
	events   chan Frame
	once     sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata adds a metadata key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) { c.metadata[key] = value }
}

// WithRunID tags the client with the run it follows.
func WithRunID(runID string) ClientOption {
	return WithMetadata(logger.FieldRunID, runID)
}

// WithBuffer sets how many frames may queue before sends are dropped.
func WithBuffer(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.events = make(chan Frame, n)
		}
	}
}

// NewClient creates a client with a 256 frame buffer.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		metadata: make(map[string]string),
		events:   make(chan Frame, 256),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ID() string                    { return c.id }
func (c *Client) Metadata() map[string]string   { return c.metadata }
func (c *Client) GetMetadata(key string) string { return c.metadata[key] }
func (c *Client) RunID() string                 { return c.metadata[logger.FieldRunID] }
func (c *Client) Events() <-chan Frame          { return c.events }

// Send queues f without blocking. It returns false when the client's buffer
// is full and the frame was dropped.
func (c *Client) Send(f Frame) bool {
	select {
	case c.events <- f:
		return true
	default:
		logger.Get(logger.ComponentSSE).Warn("client buffer full, dropping event", logger.Fields(
			"client_id", c.id, "event", f.Event))
		return false
	}
}

// Close closes the client's event channel. Calling it again is a no-op.
func (c *Client) Close() {
	c.once.Do(func() { close(c.events) })
}

// Message is a frame addressed to every client whose id matches Pattern.
type Message struct {
	Pattern string
	Frame
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		log:        logger.Get(logger.ComponentSSE),
	}
}

// Run is the hub's event loop. It blocks until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", logger.Fields("client_id", client.id, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields("client_id", client.id, "total_clients", total))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop shuts the hub down and closes every client. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
	h.log.Debug("all clients closed during shutdown")
}

// Register adds client. It returns false if the hub has stopped, in which
// case the client is closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		client.Close()
		return false
	}
}

// Unregister removes client and closes it.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

// BroadcastToPattern sends an event to all clients whose id matches the glob
// pattern, e.g. "run:abc123:*". It drops the message once the hub has stopped.
func (h *Hub) BroadcastToPattern(pattern, event string, data []byte) {
	select {
	case h.broadcast <- &Message{Pattern: pattern, Frame: Frame{Event: event, Data: data}}:
	case <-h.done:
	}
}

func (h *Hub) deliver(msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := 0
	for id, client := range h.clients {
		ok, err := filepath.Match(msg.Pattern, id)
		if err != nil {
			h.log.Error("pattern match failed", logger.MergeWithError(logger.Fields("pattern", msg.Pattern), err))
			return
		}
		if ok && client.Send(msg.Frame) {
			matched++
		}
	}
	h.log.Debug("broadcast delivered", logger.Fields(
		"pattern", msg.Pattern, "event", msg.Event, "match_count", matched, "data_size", len(msg.Data)))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the ids of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Client returns a client by id, or nil.
func (h *Hub) Client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

var _ Broadcaster = (*Hub)(nil)
