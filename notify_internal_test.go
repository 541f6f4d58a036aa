package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func TestNotifyRouterDispatchesToSpecificHandler(t *testing.T) {
	router := newNotifyRouter(nil)

	var received Notification
	router.on("notifications/initialized", func(ctx context.Context, n Notification) {
		received = n
	})

	n := Notification{JSONRPC: jsonrpcVersion, Method: "notifications/initialized"}
	router.dispatch(context.Background(), n)

	if received.Method != n.Method {
		t.Errorf("handler did not receive expected notification: got %+v", received)
	}
}

func TestNotifyRouterRunsHandlersInRegistrationOrder(t *testing.T) {
	router := newNotifyRouter(nil)

	var order []int
	router.on("x", func(context.Context, Notification) { order = append(order, 1) })
	router.on("x", func(context.Context, Notification) { order = append(order, 2) })
	router.onAny(func(context.Context, Notification) { order = append(order, 3) })

	router.dispatch(context.Background(), Notification{Method: "x"})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("unexpected dispatch order: %v", order)
	}
}

func TestNotifyRouterOnAnyRunsForUnregisteredMethod(t *testing.T) {
	router := newNotifyRouter(nil)

	called := false
	router.onAny(func(context.Context, Notification) { called = true })

	router.dispatch(context.Background(), Notification{Method: "notifications/resources/updated"})

	if !called {
		t.Error("expected the generic observer to run for an unregistered method")
	}
}

func TestNotifyRouterIsolatesPanickingHandler(t *testing.T) {
	router := newNotifyRouter(nil)

	secondRan := false
	router.on("x", func(context.Context, Notification) { panic("boom") })
	router.on("x", func(context.Context, Notification) { secondRan = true })

	router.dispatch(context.Background(), Notification{Method: "x"})

	if !secondRan {
		t.Error("expected a panicking handler to not prevent subsequent handlers from running")
	}
}

func TestNotifyRouterNilHandlerIgnored(t *testing.T) {
	router := newNotifyRouter(nil)
	router.on("x", nil)
	router.onAny(nil)

	// Should not panic.
	router.dispatch(context.Background(), Notification{Method: "x", Params: json.RawMessage(`{}`)})
}

// TestNotifyRouterConcurrentRegistrationAndDispatch exercises on/onAny
// racing dispatch the way Session.OnNotification / Client.SubscribeToResource
// can register a handler after the read loop is already live delivering
// notifications; run with -race to confirm the mutex actually guards
// handlers/any.
func TestNotifyRouterConcurrentRegistrationAndDispatch(t *testing.T) {
	router := newNotifyRouter(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			router.on("x", func(context.Context, Notification) {})
			router.onAny(func(context.Context, Notification) {})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			router.dispatch(context.Background(), Notification{Method: "x"})
		}
	}()
	wg.Wait()
}
