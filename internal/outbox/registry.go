// Package outbox delivers committed outbox records to downstream handlers
// with at-least-once semantics. The relay claims records under a lease,
// dispatches them to registered handlers and retries failures with
// exponential backoff until the attempt budget dead-letters the record.
package outbox

import (
	"context"
	"strings"
	"sync"

	types "github.com/yungbote/commerce-backend/internal/domain"
)

// Handler processes one outbox record. Returning nil acknowledges delivery;
// handlers must tolerate replays since delivery is at-least-once.
type Handler interface {
	Handle(ctx context.Context, rec *types.OutboxRecord) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, rec *types.OutboxRecord) error

func (f HandlerFunc) Handle(ctx context.Context, rec *types.OutboxRecord) error {
	return f(ctx, rec)
}

// Registry routes records to handlers by event type. Fallback handlers see
// every record regardless of type.
type Registry struct {
	mu       sync.RWMutex
	byType   map[string][]Handler
	fallback []Handler
}

func NewRegistry() *Registry {
	return &Registry{byType: map[string][]Handler{}}
}

func (r *Registry) Register(eventType string, h Handler) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" || h == nil {
		return
	}
	r.mu.Lock()
	r.byType[eventType] = append(r.byType[eventType], h)
	r.mu.Unlock()
}

// RegisterFallback adds a handler invoked for every event type.
func (r *Registry) RegisterFallback(h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.fallback = append(r.fallback, h)
	r.mu.Unlock()
}

// HandlersFor returns the handlers for an event type, typed first.
func (r *Registry) HandlersFor(eventType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typed := r.byType[strings.TrimSpace(eventType)]
	out := make([]Handler, 0, len(typed)+len(r.fallback))
	out = append(out, typed...)
	out = append(out, r.fallback...)
	return out
}
