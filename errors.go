package mcp

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC / MCP error codes (spec §7).
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeValidationError      = -32402
	CodeAuthError            = -32401
	CodeServerNotInitialized = -32002
	CodeRequestFailed        = -32001
)

// ProtocolError is implemented by every error kind in the taxonomy. ToJSON
// produces the wire Error object suitable for direct inclusion in an
// error-response envelope (spec §7 "toJSON contract").
type ProtocolError interface {
	error
	ToJSON() *Error
}

func jsonError(code int, message string, data any) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}

// ParseError reports that an envelope's JSON did not parse (spec §7).
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %v", e.Cause)
	}
	return "parse error"
}

func (e *ParseError) Unwrap() error { return e.Cause }

func (e *ParseError) ToJSON() *Error {
	return jsonError(CodeParseError, e.Error(), nil)
}

// InvalidRequestError reports that an envelope failed schema or version
// validation (spec §7): bad jsonrpc version, malformed id, a progressToken
// that isn't a string or number, result+error co-occurrence, and so on.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

func (e *InvalidRequestError) ToJSON() *Error {
	return jsonError(CodeInvalidRequest, e.Error(), nil)
}

// MethodNotFoundError reports that the dispatcher has no handler registered
// for the requested method (spec §7, §4.7).
type MethodNotFoundError struct {
	Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s", e.Method)
}

func (e *MethodNotFoundError) ToJSON() *Error {
	return jsonError(CodeMethodNotFound, e.Error(), nil)
}

// InvalidParamsError reports handler-level validation failure: missing
// required prompt argument, unknown resource uri, a tool input that fails
// its schema, or similar (spec §4.7, §7). Message always begins with
// "Invalid params" per the Tool validation invariant.
type InvalidParamsError struct {
	Detail string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("Invalid params: %s", e.Detail)
}

func (e *InvalidParamsError) ToJSON() *Error {
	return jsonError(CodeInvalidParams, e.Error(), nil)
}

// InternalError reports an uncaught handler failure (spec §7).
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %v", e.Cause)
	}
	return "internal error"
}

func (e *InternalError) Unwrap() error { return e.Cause }

func (e *InternalError) ToJSON() *Error {
	return jsonError(CodeInternalError, e.Error(), nil)
}

// ValidationError reports an explicit schema validation failure at an API
// boundary, distinct from the handler-level InvalidParamsError (spec §7).
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Detail)
}

func (e *ValidationError) ToJSON() *Error {
	return jsonError(CodeValidationError, e.Error(), nil)
}

// AuthError reports a missing or invalid authorization token, or an OAuth
// flow failure (spec §7).
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Detail)
}

func (e *AuthError) ToJSON() *Error {
	return jsonError(CodeAuthError, e.Error(), nil)
}

// ServerNotInitializedError reports that a peer tried to act before the
// initialize handshake completed (spec §4.3, §7).
type ServerNotInitializedError struct {
	Detail string
}

func (e *ServerNotInitializedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server not initialized: %s", e.Detail)
	}
	return "server not initialized"
}

func (e *ServerNotInitializedError) ToJSON() *Error {
	return jsonError(CodeServerNotInitialized, e.Error(), nil)
}

// RequestFailedError covers request timeout, cancellation, transport
// closure, protocol version mismatch, and unsupported-capability refusals
// (spec §7, §8). The Message is preserved verbatim since callers match on
// its text (e.g. the `/Protocol version mismatch/` regex in spec §8).
type RequestFailedError struct {
	Message string
	Cause   error
}

func (e *RequestFailedError) Error() string {
	return e.Message
}

func (e *RequestFailedError) Unwrap() error { return e.Cause }

func (e *RequestFailedError) ToJSON() *Error {
	return jsonError(CodeRequestFailed, e.Error(), nil)
}

// RPCError wraps an inbound JSON-RPC error response whose kind is not one
// this engine originates locally (e.g. a peer-specific application
// error). It implements error and errors.Is by
// comparing codes.
type RPCError struct {
	err *Error
}

// NewRPCError creates a new RPCError wrapping a JSON-RPC error object.
func NewRPCError(err *Error) *RPCError {
	return &RPCError{err: err}
}

// Error implements the error interface. Data is deliberately excluded: it
// is peer-controlled and may carry sensitive information. Use Data() to
// access it explicitly.
func (e *RPCError) Error() string {
	if e.err == nil {
		return "rpc error: <nil>"
	}
	return fmt.Sprintf("rpc error: code=%d message=%q", e.err.Code, e.err.Message)
}

// RPCError returns the underlying JSON-RPC error.
func (e *RPCError) RPCError() *Error {
	return e.err
}

// Code returns the JSON-RPC error code.
func (e *RPCError) Code() int {
	if e.err == nil {
		return 0
	}
	return e.err.Code
}

// Message returns the JSON-RPC error message.
func (e *RPCError) Message() string {
	if e.err == nil {
		return ""
	}
	return e.err.Message
}

// Data returns the raw JSON-RPC error data, if any.
func (e *RPCError) Data() json.RawMessage {
	if e.err == nil {
		return nil
	}
	return e.err.Data
}

// Is implements errors.Is by comparing error codes.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	if e.err == nil || t.err == nil {
		return e.err == t.err
	}
	return e.err.Code == t.err.Code
}

// TransportError wraps IO/connection failures raised by a Transport
// implementation. Session returns it directly when the transport fails in
// Connect, Close, Call or Notify.
type TransportError struct {
	msg   string
	cause error
}

// NewTransportError creates a new TransportError with a message and optional cause.
func NewTransportError(msg string, cause error) *TransportError {
	return &TransportError{msg: msg, cause: cause}
}

func (e *TransportError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("transport error: %s", e.msg)
}

func (e *TransportError) Unwrap() error { return e.cause }

// errorFromWire converts a decoded wire Error into the closest matching
// ProtocolError kind, so callers can use errors.As against the taxonomy
// types regardless of which peer originated the error.
func errorFromWire(wire *Error) error {
	if wire == nil {
		return nil
	}
	switch wire.Code {
	case CodeParseError:
		return &ParseError{Cause: fmt.Errorf("%s", wire.Message)}
	case CodeInvalidRequest:
		return &InvalidRequestError{Reason: wire.Message}
	case CodeMethodNotFound:
		return &MethodNotFoundError{Method: wire.Message}
	case CodeInvalidParams:
		return &InvalidParamsError{Detail: wire.Message}
	case CodeInternalError:
		return &InternalError{Cause: fmt.Errorf("%s", wire.Message)}
	case CodeValidationError:
		return &ValidationError{Detail: wire.Message}
	case CodeAuthError:
		return &AuthError{Detail: wire.Message}
	case CodeServerNotInitialized:
		return &ServerNotInitializedError{Detail: wire.Message}
	case CodeRequestFailed:
		return &RequestFailedError{Message: wire.Message}
	default:
		return NewRPCError(wire)
	}
}
