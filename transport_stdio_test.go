package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	mcp "github.com/drengskapur/mcp-go"
)

func TestStdioTransportSendWritesNewlineDelimitedFrame(t *testing.T) {
	var out bytes.Buffer
	transport := mcp.NewStdioTransport(bytes.NewReader(nil), &out)

	if err := transport.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := transport.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"ping"}`)); err != nil {
		t.Fatal(err)
	}

	if out.String() != "{\"jsonrpc\":\"2.0\",\"method\":\"ping\"}\n" {
		t.Errorf("unexpected wire output: %q", out.String())
	}
}

func TestStdioTransportReadLoopParsesLines(t *testing.T) {
	reader, writer := io.Pipe()
	transport := mcp.NewStdioTransport(reader, io.Discard)

	received := make(chan json.RawMessage, 2)
	transport.SubscribeMessages(func(data json.RawMessage) { received <- data })

	if err := transport.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	go func() {
		writer.Write([]byte("{\"jsonrpc\":\"2.0\",\"method\":\"a\"}\n"))
		writer.Write([]byte("{\"jsonrpc\":\"2.0\",\"method\":\"b\"}\n"))
		writer.Close()
	}()

	for _, want := range []string{"a", "b"} {
		select {
		case got := <-received:
			var frame struct{ Method string }
			if err := json.Unmarshal(got, &frame); err != nil {
				t.Fatal(err)
			}
			if frame.Method != want {
				t.Errorf("got method %q, want %q", frame.Method, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a parsed line")
		}
	}
}

func TestStdioTransportSendAfterDisconnectFails(t *testing.T) {
	transport := mcp.NewStdioTransport(bytes.NewReader(nil), io.Discard)
	if err := transport.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := transport.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := transport.Send(context.Background(), json.RawMessage(`{}`)); err != mcp.ErrTransportClosed {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
}
