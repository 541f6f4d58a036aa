package mcp

import (
	"encoding/json"
	"fmt"
)

// jsonrpcVersion is the protocol version string for JSON-RPC 2.0.
const jsonrpcVersion = "2.0"

// LatestProtocolVersion is the MCP protocol date-stamp this engine speaks.
// A client MUST reject an initialize response carrying any other value
// (spec §4.3, §6.3).
const LatestProtocolVersion = "2024-11-05"

// RequestID is a union type matching the JSON-RPC 2.0 id: string, number,
// or null. Internally normalized to a string key for map matching (see
// normalizeID), but the original wire representation is preserved for
// round-tripping.
type RequestID struct {
	Value interface{} // string | float64 | int64 | uint64 | nil
}

// MarshalJSON implements json.Marshaler for RequestID.
func (r RequestID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value)
}

// UnmarshalJSON implements json.Unmarshaler for RequestID.
func (r *RequestID) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.Value = v
	return nil
}

// IsNull reports whether the id carries no value (valid only on an error
// response correlating to a request whose id could not be recovered).
func (r RequestID) IsNull() bool {
	return r.Value == nil
}

// normalizeID formats an arbitrary decoded id (JSON numbers always decode
// to float64) into a stable string key, so a request sent with an int64 id
// matches the float64 the transport round-trips back.
func normalizeID(id interface{}) string {
	switch v := id.(type) {
	case float64:
		u := uint64(v)
		if v >= 0 && v == float64(u) {
			return fmt.Sprintf("%d", u)
		}
		return fmt.Sprintf("%v", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", id)
	}
}

// Request represents a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 success response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification represents a JSON-RPC 2.0 notification: a method-bearing
// envelope with no id, expecting no reply.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object, embeddable directly in an
// error-response envelope.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// envelopeKind classifies a decoded frame before it is unmarshaled into its
// concrete Request/Response/Notification type.
type envelopeKind int

const (
	envelopeUnknown envelopeKind = iota
	envelopeRequest
	envelopeResponse
	envelopeNotification
)

// peekEnvelope inspects the jsonrpc/id/method fields of a raw frame without
// fully unmarshaling it, classifying it per the routing rules in spec §4.4:
// id+method -> request, id only -> response, method only -> notification.
//
// It also enforces the two edge-of-session checks spec §4.1/§3 require
// before any handler runs: an id must be a string or number (never a
// boolean or object), and a response-shaped envelope must not carry both
// result and error.
func peekEnvelope(data []byte) (envelopeKind, error) {
	var peek struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
		Result  json.RawMessage `json:"result"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return envelopeUnknown, &ParseError{Cause: err}
	}
	if peek.JSONRPC != "" && peek.JSONRPC != jsonrpcVersion {
		return envelopeUnknown, &InvalidRequestError{Reason: fmt.Sprintf("unsupported jsonrpc version %q", peek.JSONRPC)}
	}

	hasID := len(peek.ID) > 0 && string(peek.ID) != "null"
	if hasID && !isValidIDKind(peek.ID) {
		return envelopeUnknown, &InvalidRequestError{Reason: "id must be a string or number"}
	}

	hasResult := len(peek.Result) > 0 && string(peek.Result) != "null"
	hasError := len(peek.Error) > 0 && string(peek.Error) != "null"
	if hasResult && hasError {
		return envelopeUnknown, &InvalidRequestError{Reason: "envelope carries both result and error"}
	}

	switch {
	case hasID && peek.Method != "":
		return envelopeRequest, nil
	case hasID:
		return envelopeResponse, nil
	case peek.Method != "":
		return envelopeNotification, nil
	default:
		return envelopeUnknown, &InvalidRequestError{Reason: "envelope has neither id nor method"}
	}
}

// isValidIDKind reports whether raw is a JSON string or number literal —
// the only two id shapes JSON-RPC 2.0 (and spec §3) permit. raw is assumed
// non-empty and not the literal "null".
func isValidIDKind(raw json.RawMessage) bool {
	trimmed := bytesTrimLeadingSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '"':
		return true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

func bytesTrimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return b[i:]
		}
	}
	return b[i:]
}

// metaCarrier is the shape used to extract _meta from an arbitrary params
// or result payload without knowing its full schema.
type metaCarrier struct {
	Meta *rawMeta `json:"_meta,omitempty"`
}

// rawMeta captures progressToken as a json.RawMessage so its type (string,
// number, or invalid) can be validated explicitly before use.
type rawMeta struct {
	ProgressToken json.RawMessage `json:"progressToken,omitempty"`
}

// extractProgressToken pulls params._meta.progressToken out of a raw params
// payload. It returns (nil, nil) when absent, and an InvalidRequestError
// when present but neither a string nor a number (spec §8: a boolean
// progressToken must be rejected before the request is ever sent).
func extractProgressToken(params json.RawMessage) (*ProgressToken, error) {
	if len(params) == 0 {
		return nil, nil
	}
	var carrier metaCarrier
	if err := json.Unmarshal(params, &carrier); err != nil {
		return nil, nil // malformed params are handled by the caller's own validation
	}
	if carrier.Meta == nil || len(carrier.Meta.ProgressToken) == 0 {
		return nil, nil
	}
	return decodeProgressToken(carrier.Meta.ProgressToken)
}

// injectProgressToken returns params with _meta.progressToken set, merging
// with any existing _meta object already present.
func injectProgressToken(params json.RawMessage, token ProgressToken) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &obj); err != nil {
			return nil, fmt.Errorf("inject progress token: params is not a JSON object: %w", err)
		}
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}

	var meta map[string]json.RawMessage
	if raw, ok := obj["_meta"]; ok {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("inject progress token: _meta is not a JSON object: %w", err)
		}
	}
	if meta == nil {
		meta = make(map[string]json.RawMessage)
	}

	tokenJSON, err := json.Marshal(token.Value)
	if err != nil {
		return nil, err
	}
	meta["progressToken"] = tokenJSON

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	obj["_meta"] = metaJSON

	return json.Marshal(obj)
}
