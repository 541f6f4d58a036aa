package mcp

import (
	"context"
	"encoding/json"
	"errors"
)

// MessageHandler receives one raw decoded frame off the wire, already
// framed but not yet classified or interpreted. Session owns interpretation; the
// transport's only job is framing.
type MessageHandler func(data json.RawMessage)

// ErrorHandler receives asynchronous transport failures: a read loop's
// terminal error, a dropped connection, a write that can't be retried.
type ErrorHandler func(err error)

// Transport abstracts the wire format a Session rides on. Implementations
// must be safe for concurrent Send calls and must keep delivering frames to
// registered handlers until Disconnect is called (spec §6.1).
//
// A Transport carries raw frames only — it does not interpret
// request/response/notification semantics or perform id correlation; that
// is the Session's job, so the same Transport implementation serves both
// the client and the server role of a connection.
type Transport interface {
	// Connect establishes the underlying channel. Implementations that are
	// already connected when constructed (e.g. an open stdio pipe) may
	// treat this as a no-op.
	Connect(ctx context.Context) error

	// Disconnect tears down the channel. Safe to call multiple times and
	// safe to call concurrently with Send.
	Disconnect() error

	// Send writes one raw JSON frame. Implementations that frame messages
	// (newline-delimited, SSE event, length-prefixed) apply their framing
	// here; callers pass an already-marshaled envelope.
	Send(ctx context.Context, data json.RawMessage) error

	// SubscribeMessages registers a handler invoked for every inbound
	// frame. Multiple handlers may be registered; all are invoked in
	// registration order for every frame.
	SubscribeMessages(handler MessageHandler)

	// SubscribeErrors registers a handler invoked when the transport
	// encounters an unrecoverable error (closed connection, scanner
	// failure). Multiple handlers may be registered.
	SubscribeErrors(handler ErrorHandler)
}

// ErrTransportClosed is returned by Send after Disconnect has been called.
var ErrTransportClosed = errors.New("transport closed")

// fanout is the shared multi-handler bookkeeping used by every Transport
// implementation in this package (stdio, in-memory, SSE).
type fanout struct {
	messageHandlers []MessageHandler
	errorHandlers   []ErrorHandler
}

func (f *fanout) addMessageHandler(h MessageHandler) {
	if h != nil {
		f.messageHandlers = append(f.messageHandlers, h)
	}
}

func (f *fanout) addErrorHandler(h ErrorHandler) {
	if h != nil {
		f.errorHandlers = append(f.errorHandlers, h)
	}
}

func (f *fanout) dispatchMessage(data json.RawMessage) {
	for _, h := range f.messageHandlers {
		h(data)
	}
}

func (f *fanout) dispatchError(err error) {
	for _, h := range f.errorHandlers {
		h(err)
	}
}
