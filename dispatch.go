package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// HandlerFunc is a registered server-side method handler. It receives the
// request's raw params and returns a JSON-serializable result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// RegisteredMethod is one entry in the dispatcher's method registry
// (spec §3 "RegisteredMethod").
type RegisteredMethod struct {
	Name    string
	Handler HandlerFunc
}

// dispatcher resolves inbound requests to registered handlers and
// converts handler errors into protocol error responses (spec §4.7). The
// last registration for a given name wins.
//
// methods is read by dispatch from the transport read loop and written by
// register/unregister whenever a caller adds a method after Serve has
// started (Server.RegisterTool/RegisterPrompt/RegisterMethod have no state
// gate); mu guards both.
type dispatcher struct {
	mu      sync.RWMutex
	methods map[string]HandlerFunc
	metrics *metricsRecorder
}

func newDispatcher() *dispatcher {
	return &dispatcher{methods: make(map[string]HandlerFunc)}
}

func (d *dispatcher) register(name string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[name] = handler
}

func (d *dispatcher) unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.methods, name)
}

// dispatch looks up req.Method and invokes its handler, converting the
// result into a success or error Response. It never panics the caller's
// loop: a handler panic is recovered and reported as InternalError.
func (d *dispatcher) dispatch(ctx context.Context, req Request) (resp Response) {
	resp.JSONRPC = jsonrpcVersion
	resp.ID = req.ID

	d.mu.RLock()
	handler, ok := d.methods[req.Method]
	d.mu.RUnlock()
	if !ok {
		resp.Error = (&MethodNotFoundError{Method: req.Method}).ToJSON()
		return resp
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp.Result = nil
			resp.Error = (&InternalError{Cause: panicToError(r)}).ToJSON()
		}
		if d.metrics != nil {
			d.metrics.observeDispatch(req.Method, resp.Error == nil)
			d.metrics.requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
		}
	}()

	result, err := handler(ctx, req.Params)
	if err != nil {
		var verr *ValidationError
		var perr ProtocolError
		switch {
		case asValidationError(err, &verr):
			// spec §4.7: a thrown ValidationError is carried to the caller
			// as InvalidParams, not its own ValidationError code.
			resp.Error = (&InvalidParamsError{Detail: verr.Detail}).ToJSON()
		case asProtocolError(err, &perr):
			resp.Error = perr.ToJSON()
		default:
			resp.Error = (&InternalError{Cause: err}).ToJSON()
		}
		return resp
	}

	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = (&InternalError{Cause: err}).ToJSON()
		return resp
	}
	resp.Result = data
	return resp
}

// asProtocolError reports whether err (or something it wraps) implements
// ProtocolError, setting *out on success.
func asProtocolError(err error, out *ProtocolError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if pe, ok := err.(ProtocolError); ok {
			*out = pe
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// asValidationError reports whether err (or something it wraps) is a
// *ValidationError, setting *out on success.
func asValidationError(err error, out **ValidationError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if ve, ok := err.(*ValidationError); ok {
			*out = ve
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("handler panicked: %v", r)
}
