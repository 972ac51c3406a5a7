package signal

import (
	"encoding/json"
	"sync"
	"time"

	"classrelay/internal/core/domain"
	"classrelay/internal/infrastructure/monitoring"

	"go.uber.org/zap"
)

// EventError is shared by all namespaces.
const EventError = "error"

// Options carries the per-namespace transport tuning.
type Options struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	SendBufferSize    int
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
}

// DefaultOptions mirrors the config defaults, used by tests.
func DefaultOptions() Options {
	return Options{
		PingInterval:      30 * time.Second,
		PongTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SendBufferSize:    256,
		MaxMessageBytes:   512 * 1024,
		MessagesPerSecond: 50,
		MessageBurst:      100,
	}
}

// Hub is the scope registry of one namespace: it maps live connections to
// the named broadcast scopes they joined and owns the broadcast primitive.
// Components hold disjoint hubs; a hub's maps are only mutated under its own
// lock.
type Hub struct {
	namespace string
	opts      Options
	logger    *zap.SugaredLogger
	metrics   *monitoring.Collector

	mu         sync.RWMutex
	conns      map[domain.ConnectionID]*Conn
	scopes     map[string]map[domain.ConnectionID]*Conn
	connScopes map[domain.ConnectionID]map[string]struct{}
}

func NewHub(namespace string, opts Options, logger *zap.SugaredLogger, metrics *monitoring.Collector) *Hub {
	return &Hub{
		namespace:  namespace,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
		conns:      make(map[domain.ConnectionID]*Conn),
		scopes:     make(map[string]map[domain.ConnectionID]*Conn),
		connScopes: make(map[domain.ConnectionID]map[string]struct{}),
	}
}

func (h *Hub) Namespace() string {
	return h.namespace
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionOpened(h.namespace)
	}
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	if _, known := h.conns[c.id]; !known {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	for scope := range h.connScopes[c.id] {
		h.removeFromScope(scope, c.id)
	}
	delete(h.connScopes, c.id)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionClosed(h.namespace)
	}
}

// Join adds the connection to a named scope. Idempotent.
func (h *Hub) Join(c *Conn, scope string) {
	if scope == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	members, exists := h.scopes[scope]
	if !exists {
		members = make(map[domain.ConnectionID]*Conn)
		h.scopes[scope] = members
	}
	members[c.id] = c

	joined, exists := h.connScopes[c.id]
	if !exists {
		joined = make(map[string]struct{})
		h.connScopes[c.id] = joined
	}
	joined[scope] = struct{}{}
}

// Leave removes the connection from a scope. Idempotent.
func (h *Hub) Leave(c *Conn, scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromScope(scope, c.id)
	if joined, exists := h.connScopes[c.id]; exists {
		delete(joined, scope)
	}
}

// removeFromScope must be called with h.mu held.
func (h *Hub) removeFromScope(scope string, id domain.ConnectionID) {
	members, exists := h.scopes[scope]
	if !exists {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.scopes, scope)
	}
}

func (h *Hub) InScope(id domain.ConnectionID, scope string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, exists := h.scopes[scope]
	if !exists {
		return false
	}
	_, member := members[id]
	return member
}

// Broadcast fans an event out to the scope's current members, skipping any
// excluded connection ids. Delivery is best effort to currently-connected
// sockets.
func (h *Hub) Broadcast(scope, event string, payload interface{}, exclude ...domain.ConnectionID) {
	frame, err := h.marshalFrame(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.scopes[scope]))
	for id, conn := range h.scopes[scope] {
		if excluded(id, exclude) {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.enqueue(frame)
	}
}

// BroadcastAll fans an event out to every connection in the namespace.
func (h *Hub) BroadcastAll(event string, payload interface{}, exclude ...domain.ConnectionID) {
	frame, err := h.marshalFrame(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for id, conn := range h.conns {
		if excluded(id, exclude) {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.enqueue(frame)
	}
}

// SendTo delivers an event to a single connection. Returns
// domain.ErrConnectionNotFound if the target is no longer live.
func (h *Hub) SendTo(id domain.ConnectionID, event string, payload interface{}) error {
	h.mu.RLock()
	conn, exists := h.conns[id]
	h.mu.RUnlock()

	if !exists {
		return domain.ErrConnectionNotFound
	}

	frame, err := h.marshalFrame(event, payload)
	if err != nil {
		return err
	}
	conn.enqueue(frame)
	return nil
}

func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

// CloseAll sends a going-away close to every connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.close()
	}
}

func (h *Hub) marshalFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Errorw("failed to marshal broadcast payload",
			"namespace", h.namespace,
			"event", event,
			"error", err,
		)
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func excluded(id domain.ConnectionID, exclude []domain.ConnectionID) bool {
	for _, ex := range exclude {
		if id == ex {
			return true
		}
	}
	return false
}
