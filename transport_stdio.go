package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// StdioTransport implements Transport over newline-delimited JSON on an
// io.Reader/io.Writer pair, typically os.Stdin/os.Stdout (spec §6.1).
type StdioTransport struct {
	reader io.Reader
	writer io.Writer

	mu     sync.Mutex
	fanout fanout
	closed bool

	writeMu sync.Mutex

	readerStopped chan struct{}
	stopOnce      sync.Once
	connectOnce   sync.Once
}

// NewStdioTransport constructs a StdioTransport. Connect starts the read
// loop; constructing alone does not.
func NewStdioTransport(reader io.Reader, writer io.Writer) *StdioTransport {
	return &StdioTransport{
		reader:        reader,
		writer:        writer,
		readerStopped: make(chan struct{}),
	}
}

// Connect starts the background read loop. Safe to call once; subsequent
// calls are no-ops.
func (t *StdioTransport) Connect(ctx context.Context) error {
	t.connectOnce.Do(func() { go t.readLoop() })
	return nil
}

// Disconnect stops accepting further sends. The read loop exits on its own
// once the underlying reader returns EOF or an error.
func (t *StdioTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// SubscribeMessages registers an inbound frame handler.
func (t *StdioTransport) SubscribeMessages(handler MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fanout.addMessageHandler(handler)
}

// SubscribeErrors registers a transport error handler.
func (t *StdioTransport) SubscribeErrors(handler ErrorHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fanout.addErrorHandler(handler)
}

// Send writes one newline-terminated JSON frame. Concurrent Send calls are
// serialized so frames are never interleaved.
func (t *StdioTransport) Send(ctx context.Context, data json.RawMessage) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	buf := data
	for len(buf) > 0 {
		n, err := t.writer.Write(buf)
		if err != nil {
			return NewTransportError("write message", err)
		}
		if n == 0 {
			return NewTransportError("write message", errors.New("writer returned zero bytes written without error"))
		}
		buf = buf[n:]
	}
	if _, err := t.writer.Write([]byte{'\n'}); err != nil {
		return NewTransportError("write message", err)
	}
	return nil
}

// readLoop scans newline-delimited frames and fans each out to registered
// message handlers until the reader is exhausted.
func (t *StdioTransport) readLoop() {
	defer t.stopOnce.Do(func() { close(t.readerStopped) })

	const initialBufferSize = 64 * 1024
	const maxMessageSize = 10 * 1024 * 1024 // file diffs and base64 payloads exceed the default
	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxMessageSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		frame := make(json.RawMessage, len(line))
		copy(frame, line)

		t.mu.Lock()
		handlers := append([]MessageHandler(nil), t.fanout.messageHandlers...)
		t.mu.Unlock()
		for _, h := range handlers {
			h(frame)
		}
	}

	if err := scanner.Err(); err != nil {
		t.mu.Lock()
		errHandlers := append([]ErrorHandler(nil), t.fanout.errorHandlers...)
		t.mu.Unlock()
		for _, h := range errHandlers {
			h(NewTransportError("read loop", err))
		}
	}
}
