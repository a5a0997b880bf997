// Package hooks provides named event handlers for bridge events and a serial
// dispatcher that delivers them one at a time.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
)

// Event names for the hook system.
const (
	EventStatusChanged     = "status_changed"
	EventMessageReceived   = "message_received"
	EventBadgeChanged      = "badge_changed"
	EventConnectionChanged = "connection_changed"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventStatusChanged,
	EventMessageReceived,
	EventBadgeChanged,
	EventConnectionChanged,
}

// ConnectionChange reports a connection state transition and whether note
// input is available in the new state.
type ConnectionChange struct {
	State        domain.ConnectionState `json:"state"`
	InputEnabled bool                   `json:"inputEnabled"`
}

// Payload carries event data to hook handlers. Exactly one of the data
// fields is set, matching Event.
type Payload struct {
	Event      string                  `json:"event"`
	Status     string                  `json:"status,omitempty"`
	Message    *domain.RelevantMessage `json:"message,omitempty"`
	Badge      *domain.Badge           `json:"badge,omitempty"`
	Connection *ConnectionChange       `json:"connection,omitempty"`
}

// StatusPayload builds a status_changed payload.
func StatusPayload(status string) Payload {
	return Payload{Event: EventStatusChanged, Status: status}
}

// MessagePayload builds a message_received payload.
func MessagePayload(msg domain.RelevantMessage) Payload {
	return Payload{Event: EventMessageReceived, Message: &msg}
}

// BadgePayload builds a badge_changed payload.
func BadgePayload(b domain.Badge) Payload {
	return Payload{Event: EventBadgeChanged, Badge: &b}
}

// ConnectionPayload builds a connection_changed payload.
func ConnectionPayload(state domain.ConnectionState) Payload {
	return Payload{Event: EventConnectionChanged, Connection: &ConnectionChange{
		State:        state,
		InputEnabled: state == domain.StateConnected,
	}}
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event.
// The name identifies the handler for logging and for Off.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := m.handlers[event]
	filtered := make([]namedHandler, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	m.handlers[event] = filtered
}

// Emit calls every handler registered for p.Event synchronously, in
// registration order. Errors and panics are logged and do not prevent
// subsequent handlers from running.
func (m *Manager) Emit(ctx context.Context, p Payload) {
	m.mu.RLock()
	handlers := make([]namedHandler, len(m.handlers[p.Event]))
	copy(handlers, m.handlers[p.Event])
	m.mu.RUnlock()

	for _, h := range handlers {
		if err := m.call(ctx, h, p); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", p.Event).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.handler(ctx, p)
}
