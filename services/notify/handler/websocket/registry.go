package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lapar/orderbell/internal/pkg/logger"
	"github.com/lapar/orderbell/internal/pkg/models"
)

// Conn is the slice of a websocket connection the registry needs.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// entry tracks one live connection and its bound identity. Writes go
// through the entry so concurrent senders never interleave frames on
// the same connection.
type entry struct {
	conn     Conn
	writeMu  sync.Mutex
	identity models.Identity
}

func (e *entry) writeJSON(v interface{}) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.conn.WriteJSON(v)
}

func (e *entry) writeMessage(messageType int, data []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.conn.WriteMessage(messageType, data)
}

// Registry tracks all currently-open connections and their identity
// attributes. An entry exists from Add until Remove; identity fields
// stay unset until Bind.
type Registry struct {
	mu      sync.RWMutex
	entries map[Conn]*entry
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Conn]*entry),
	}
}

// Add inserts a new entry with all identity fields unset. The entry is
// visible to Broadcast immediately, but only an all-wildcard filter
// can reach it before Bind.
func (r *Registry) Add(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[conn] = &entry{conn: conn}
}

// Remove deletes the entry for a closed connection. Safe to call for
// connections that were never bound, and safe to call twice.
func (r *Registry) Remove(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, conn)
}

// Bind sets the identity attributes for a connection. A second call
// overwrites the previous binding. Binding an unknown connection is a
// no-op (it already closed).
func (r *Registry) Bind(conn Conn, identity models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[conn]; ok {
		e.identity = identity
	}
}

// Identity returns the bound identity for a connection.
func (r *Registry) Identity(conn Conn) (models.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[conn]; ok {
		return e.identity, true
	}
	return models.Identity{}, false
}

// WriteTo writes a control frame to a single connection through its
// entry, serialized against concurrent broadcasts.
func (r *Registry) WriteTo(conn Conn, v interface{}) error {
	r.mu.RLock()
	e, ok := r.entries[conn]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.writeJSON(v)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// match returns the entries whose identity satisfies every present
// filter field.
func (r *Registry) match(filter models.Filter) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*entry, 0)
	for _, e := range r.entries {
		if filter.Matches(e.identity) {
			matched = append(matched, e)
		}
	}
	return matched
}

// Broadcast serializes the notification once and writes the frame to
// every matching connection. A write failure (the peer closed
// mid-dispatch) is logged and skipped; it never aborts delivery to the
// remaining connections. Returns the number of successful writes, for
// observability only.
func (r *Registry) Broadcast(n *models.Notification, filter models.Filter) int {
	payload, err := json.Marshal(n)
	if err != nil {
		logger.Error("Failed to serialize notification",
			logger.String("notification_id", n.ID),
			logger.String("event_type", n.Type),
			logger.Err(err))
		return 0
	}

	matched := r.match(filter)

	delivered := 0
	for _, e := range matched {
		if err := e.writeMessage(websocket.TextMessage, payload); err != nil {
			logger.Warn("Failed to write notification to connection",
				logger.String("notification_id", n.ID),
				logger.String("event_type", n.Type),
				logger.Err(err))
			continue
		}
		delivered++
	}

	logger.Debug("Notification broadcast",
		logger.String("notification_id", n.ID),
		logger.String("event_type", n.Type),
		logger.Int("matched", len(matched)),
		logger.Int("delivered", delivered))

	return delivered
}
