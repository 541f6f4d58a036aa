package mcp

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemoryTransport implements Transport over Go channels, pairing with
// another InMemoryTransport created by NewInMemoryTransportPair. It exists
// for tests that exercise full Session/Client/Server round trips without a
// real process boundary.
type InMemoryTransport struct {
	mu     sync.Mutex
	fanout fanout
	closed bool

	out chan<- json.RawMessage
	in  <-chan json.RawMessage

	stopOnce sync.Once
	done     chan struct{}
}

// NewInMemoryTransportPair returns two linked transports; frames sent on
// one are delivered to the other's message handlers.
func NewInMemoryTransportPair() (*InMemoryTransport, *InMemoryTransport) {
	aToB := make(chan json.RawMessage, 64)
	bToA := make(chan json.RawMessage, 64)

	a := &InMemoryTransport{out: aToB, in: bToA, done: make(chan struct{})}
	b := &InMemoryTransport{out: bToA, in: aToB, done: make(chan struct{})}
	return a, b
}

// Connect starts the delivery loop. Safe to call once.
func (t *InMemoryTransport) Connect(ctx context.Context) error {
	go t.deliverLoop()
	return nil
}

// Disconnect marks the transport closed; further Send calls fail.
func (t *InMemoryTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.stopOnce.Do(func() { close(t.done) })
	return nil
}

// SubscribeMessages registers an inbound frame handler.
func (t *InMemoryTransport) SubscribeMessages(handler MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fanout.addMessageHandler(handler)
}

// SubscribeErrors registers a transport error handler.
func (t *InMemoryTransport) SubscribeErrors(handler ErrorHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fanout.addErrorHandler(handler)
}

// Send enqueues a frame for delivery to the paired transport.
func (t *InMemoryTransport) Send(ctx context.Context, data json.RawMessage) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	select {
	case t.out <- data:
		return nil
	case <-t.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *InMemoryTransport) deliverLoop() {
	for {
		select {
		case data := <-t.in:
			t.mu.Lock()
			handlers := append([]MessageHandler(nil), t.fanout.messageHandlers...)
			t.mu.Unlock()
			for _, h := range handlers {
				h(data)
			}
		case <-t.done:
			return
		}
	}
}
