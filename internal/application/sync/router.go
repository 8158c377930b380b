package sync

import (
	"context"
	"fmt"

	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// routeKey identifies one dispatch slot.
type routeKey struct {
	eventType domainsync.EventType
	source    domainsync.Source
}

// Router dispatches canonical events to handlers registered for their
// (event type, source) pair.
type Router struct {
	routes map[routeKey]domainsync.Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[routeKey]domainsync.Handler)}
}

// Register binds a handler to every event type it declares, for one source.
// Registering a second handler for the same pair is a wiring bug.
func (r *Router) Register(source domainsync.Source, handler domainsync.Handler) error {
	for _, eventType := range handler.EventTypes() {
		key := routeKey{eventType: eventType, source: source}
		if _, exists := r.routes[key]; exists {
			return fmt.Errorf("handler already registered for %s/%s", eventType, source)
		}
		r.routes[key] = handler
	}
	return nil
}

// Dispatch routes one event to its handler. Returns ErrNoHandler when the
// (type, source) pair has no registration; callers acknowledge such events
// instead of retrying them, since redelivery cannot make a handler appear.
func (r *Router) Dispatch(ctx context.Context, event *domainsync.Event) (*domainsync.Result, error) {
	handler, ok := r.routes[routeKey{eventType: event.EventType, source: event.Source}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domainsync.ErrNoHandler, event.EventType, event.Source)
	}
	return handler.Handle(ctx, event)
}

// Routes returns the number of registered (type, source) pairs.
func (r *Router) Routes() int {
	return len(r.routes)
}
