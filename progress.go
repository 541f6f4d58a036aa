package mcp

import (
	"encoding/json"
	"sync"
)

// ProgressToken correlates out-of-band notifications/progress notifications
// with the request that requested them (spec §4.6). It is carried as
// params._meta.progressToken and must be either a string or a number.
type ProgressToken struct {
	Value interface{} // string | float64
}

// MarshalJSON implements json.Marshaler for ProgressToken.
func (t ProgressToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Value)
}

// UnmarshalJSON implements json.Unmarshaler for ProgressToken.
func (t *ProgressToken) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	t.Value = v
	return nil
}

// decodeProgressToken validates a raw progressToken payload against the
// string-or-number constraint (spec §8: a boolean or object progressToken
// must be rejected).
func decodeProgressToken(raw json.RawMessage) (*ProgressToken, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &InvalidRequestError{Reason: "progressToken is not valid JSON"}
	}
	switch v.(type) {
	case string, float64:
		return &ProgressToken{Value: v}, nil
	default:
		return nil, &InvalidRequestError{Reason: "progressToken must be a string or number"}
	}
}

// progressKey normalizes a ProgressToken into a map key, mirroring
// normalizeID's treatment of JSON-decoded numbers.
func progressKey(t ProgressToken) string {
	return normalizeID(t.Value)
}

// ProgressHandler receives progress notifications for a single outstanding
// request. progress and total mirror the wire fields of notifications/progress;
// total is nil when the peer did not report one.
type ProgressHandler func(progress float64, total *float64, message string)

// progressSinks tracks the live ProgressHandler for each outstanding request
// that registered a progress token, keyed by its normalized progress token.
type progressSinks struct {
	mu    sync.Mutex
	sinks map[string]ProgressHandler
}

func newProgressSinks() *progressSinks {
	return &progressSinks{sinks: make(map[string]ProgressHandler)}
}

func (p *progressSinks) register(token ProgressToken, handler ProgressHandler) {
	if handler == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks[progressKey(token)] = handler
}

func (p *progressSinks) deregister(token ProgressToken) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sinks, progressKey(token))
}

func (p *progressSinks) dispatch(token ProgressToken, progress float64, total *float64, message string) bool {
	p.mu.Lock()
	handler, ok := p.sinks[progressKey(token)]
	p.mu.Unlock()
	if !ok {
		return false
	}
	handler(progress, total, message)
	return true
}
