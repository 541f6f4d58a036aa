package mcp

import (
	"context"
	"log/slog"
	"sync"
)

// notifyHandler is the router's internal handler shape; context carries
// whatever context the session's inbound dispatch loop is running under.
type notifyHandler func(ctx context.Context, n Notification)

// notifyRouter dispatches inbound notifications to handlers registered by
// method name, in registration order, isolating a panicking handler from
// the rest (spec §4.5). Unknown methods reach only the generic observers
// registered via onAny.
//
// handlers/any are read by dispatch from the transport read loop and
// written by on/onAny whenever a caller subscribes at runtime (Session.
// OnNotification, Client.SubscribeToResource); mu guards both, mirroring
// the teacher's listenersMu discipline.
type notifyRouter struct {
	mu       sync.RWMutex
	handlers map[string][]notifyHandler
	any      []notifyHandler
	logger   *slog.Logger
}

func newNotifyRouter(logger *slog.Logger) *notifyRouter {
	return &notifyRouter{handlers: make(map[string][]notifyHandler), logger: logger}
}

// on registers a handler for one notification method.
func (r *notifyRouter) on(method string, h notifyHandler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = append(r.handlers[method], h)
}

// onAny registers a generic observer invoked for every notification,
// including ones with a specific handler registered.
func (r *notifyRouter) onAny(h notifyHandler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.any = append(r.any, h)
}

// dispatch runs every handler registered for n.Method, then every generic
// observer, in registration order. A handler panic is recovered and logged
// so one bad listener cannot take down the read loop. The handler slices
// are snapshotted under RLock so a concurrent on/onAny registration never
// races a dispatch already in flight.
func (r *notifyRouter) dispatch(ctx context.Context, n Notification) {
	r.mu.RLock()
	specific := append([]notifyHandler(nil), r.handlers[n.Method]...)
	any := append([]notifyHandler(nil), r.any...)
	r.mu.RUnlock()

	for _, h := range specific {
		r.invoke(ctx, n, h)
	}
	for _, h := range any {
		r.invoke(ctx, n, h)
	}
}

func (r *notifyRouter) invoke(ctx context.Context, n Notification, h notifyHandler) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Error("notification handler panicked", "method", n.Method, "recovered", rec)
			}
		}
	}()
	h(ctx, n)
}
