package mcp_test

import (
	"errors"
	"fmt"
	"testing"

	mcp "github.com/drengskapur/mcp-go"
)

func TestProtocolErrorCodesAndToJSON(t *testing.T) {
	tests := []struct {
		name string
		err  mcp.ProtocolError
		code int
	}{
		{"parse error", &mcp.ParseError{Cause: errors.New("boom")}, mcp.CodeParseError},
		{"invalid request", &mcp.InvalidRequestError{Reason: "bad jsonrpc"}, mcp.CodeInvalidRequest},
		{"method not found", &mcp.MethodNotFoundError{Method: "foo/bar"}, mcp.CodeMethodNotFound},
		{"invalid params", &mcp.InvalidParamsError{Detail: "missing message"}, mcp.CodeInvalidParams},
		{"internal error", &mcp.InternalError{Cause: errors.New("panic")}, mcp.CodeInternalError},
		{"validation error", &mcp.ValidationError{Detail: "schema mismatch"}, mcp.CodeValidationError},
		{"auth error", &mcp.AuthError{Detail: "missing token"}, mcp.CodeAuthError},
		{"server not initialized", &mcp.ServerNotInitializedError{Detail: "too early"}, mcp.CodeServerNotInitialized},
		{"request failed", &mcp.RequestFailedError{Message: "Protocol version mismatch"}, mcp.CodeRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() == "" {
				t.Error("expected non-empty Error() message")
			}
			wire := tt.err.ToJSON()
			if wire.Code != tt.code {
				t.Errorf("ToJSON().Code = %d, want %d", wire.Code, tt.code)
			}
			if wire.Message != tt.err.Error() {
				t.Errorf("ToJSON().Message = %q, want %q", wire.Message, tt.err.Error())
			}
		})
	}
}

func TestInvalidParamsErrorMessagePrefix(t *testing.T) {
	err := &mcp.InvalidParamsError{Detail: "field 'x' is required"}
	want := "Invalid params: field 'x' is required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &mcp.ParseError{Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestRPCErrorIsComparesByCode(t *testing.T) {
	a := mcp.NewRPCError(&mcp.Error{Code: -32000, Message: "app error one"})
	b := mcp.NewRPCError(&mcp.Error{Code: -32000, Message: "app error two"})
	c := mcp.NewRPCError(&mcp.Error{Code: -32001, Message: "different code"})

	if !errors.Is(a, b) {
		t.Error("expected RPCErrors with the same code to match via errors.Is")
	}
	if errors.Is(a, c) {
		t.Error("expected RPCErrors with different codes not to match")
	}
}

func TestRPCErrorAccessors(t *testing.T) {
	rpcErr := mcp.NewRPCError(&mcp.Error{Code: -32000, Message: "custom", Data: []byte(`{"detail":"x"}`)})
	if rpcErr.Code() != -32000 {
		t.Errorf("Code() = %d", rpcErr.Code())
	}
	if rpcErr.Message() != "custom" {
		t.Errorf("Message() = %q", rpcErr.Message())
	}
	if string(rpcErr.Data()) != `{"detail":"x"}` {
		t.Errorf("Data() = %s", rpcErr.Data())
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := mcp.NewTransportError("write failed", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.Error() == "" {
		t.Error("expected non-empty message")
	}
}
