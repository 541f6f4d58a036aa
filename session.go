package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SessionState is one node of the initialize/ready/closed state machine
// shared by both the client and server role (spec §4.3).
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateInitializing
	StateReady
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const defaultRequestTimeout = 30 * time.Second

// Session is the core engine shared by Client and Server: it owns the
// pending table, the state machine, the notification router, and — on the
// server role — the method dispatcher. Concrete transports are pluggable
// via the Transport interface (spec §2, §3 "Ownership").
type Session struct {
	transport Transport

	mu    sync.Mutex
	state SessionState

	pending    *pendingTable
	notify     *notifyRouter
	progress   *progressSinks
	dispatcher *dispatcher

	idCounter uint64

	requestTimeout time.Duration
	clock          func() time.Time
	logger         *slog.Logger
	metrics        *metricsRecorder

	errHandlers []ErrorHandler

	serverCaps *ServerCapabilities
	clientCaps *ClientCapabilities

	closed     chan struct{}
	closedOnce sync.Once
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithLogger sets the structured logger used for recovered panics and
// internal diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithRequestTimeout overrides the default 30s deadline applied to
// outbound requests that don't carry one via their context.
func WithRequestTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) { s.requestTimeout = timeout }
}

// WithClock stores a time source on the session. Request deadlines and
// their timers do not read it: they use time.Until and time.AfterFunc.
func WithClock(clock func() time.Time) SessionOption {
	return func(s *Session) { s.clock = clock }
}

// WithMetrics attaches a prometheus-backed metrics recorder.
func WithMetrics(m *metricsRecorder) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession constructs a Session bound to transport. It does not connect;
// call Connect to start the read loop and enter StateConnecting.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport:      transport,
		state:          StateDisconnected,
		pending:        newPendingTable(),
		progress:       newProgressSinks(),
		requestTimeout: defaultRequestTimeout,
		clock:          time.Now,
		logger:         slog.Default(),
		closed:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notify = newNotifyRouter(s.logger)
	s.notify.on(NotificationCancelled, s.handleCancelled)
	s.notify.on(NotificationProgress, s.handleProgress)

	transport.SubscribeMessages(s.handleFrame)
	transport.SubscribeErrors(s.handleTransportError)

	return s
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// SetDispatcher wires in the server-side method dispatcher. Only the
// Server façade calls this; a pure client session never receives inbound
// requests and leaves this nil (unknown requests get MethodNotFound).
func (s *Session) SetDispatcher(d *dispatcher) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

// OnNotification registers a handler for one notification method.
func (s *Session) OnNotification(method string, h func(ctx context.Context, n Notification)) {
	s.notify.on(method, h)
}

// OnAnyNotification registers a generic observer invoked for every
// notification, in addition to any method-specific handler.
func (s *Session) OnAnyNotification(h func(ctx context.Context, n Notification)) {
	s.notify.onAny(h)
}

// OnError registers a handler for transport and envelope-level errors that
// must not crash the dispatch loop (spec §4.2, §7).
func (s *Session) OnError(h ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errHandlers = append(s.errHandlers, h)
}

func (s *Session) emitError(err error) {
	s.mu.Lock()
	handlers := append([]ErrorHandler(nil), s.errHandlers...)
	logger := s.logger
	s.mu.Unlock()
	if len(handlers) == 0 {
		if logger != nil {
			logger.Warn("mcp session error", "error", err)
		}
		return
	}
	for _, h := range handlers {
		h(err)
	}
}

// Connect transitions Disconnected → Connecting → Initializing, bringing
// up the underlying transport.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnecting)
	if err := s.transport.Connect(ctx); err != nil {
		s.setState(StateClosed)
		return NewTransportError("connect", err)
	}
	s.setState(StateInitializing)
	return nil
}

// MarkReady transitions Initializing → Ready. Called by the Client façade
// once an initialize response with a matching protocol version arrives, or
// by the Server façade once it has handled the initialize request and
// observed the initialized notification.
func (s *Session) MarkReady() {
	s.setState(StateReady)
}

// Close transitions to Closing, disconnects the transport, settles every
// pending awaiter with a transport-closed error, and transitions to Closed
// (spec §4.3 "Entering Closed").
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateClosing {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	s.mu.Unlock()

	s.pending.closeAll()
	err := s.transport.Disconnect()
	s.setState(StateClosed)
	s.closedOnce.Do(func() { close(s.closed) })
	if err != nil {
		return NewTransportError("disconnect", err)
	}
	return nil
}

// Done returns a channel that's closed once the session has fully
// transitioned to Closed, for callers that want to block until shutdown
// (e.g. Server.Serve).
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

func (s *Session) nextID() RequestID {
	return RequestID{Value: int64(atomic.AddUint64(&s.idCounter, 1))}
}

// Call sends a request and blocks until it settles: a matching response,
// a matching error response, a deadline timeout, an observed cancellation,
// or session closure (spec §4.4). method == "initialize" is the only
// method permitted while the session is still Initializing.
func (s *Session) Call(ctx context.Context, method string, params any, onProgress ProgressHandler) (json.RawMessage, error) {
	state := s.State()
	if state != StateReady && !(method == MethodInitialize && state == StateInitializing) {
		return nil, &ServerNotInitializedError{Detail: fmt.Sprintf("cannot call %q in state %s", method, state)}
	}

	paramsJSON, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	if _, err := extractProgressToken(paramsJSON); err != nil {
		return nil, err
	}

	var token *ProgressToken
	if onProgress != nil {
		t := ProgressToken{Value: int64(atomic.AddUint64(&s.idCounter, 1))}
		token = &t
		injected, err := injectProgressToken(paramsJSON, t)
		if err != nil {
			return nil, err
		}
		paramsJSON = injected
		s.progress.register(t, onProgress)
	}

	id := s.nextID()
	req := Request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: paramsJSON}

	timeout := s.requestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	respCh, ok := s.pending.register(id, timeout, func() {
		s.pending.settle(id, Response{
			JSONRPC: jsonrpcVersion,
			ID:      id,
			Error:   (&RequestFailedError{Message: fmt.Sprintf("Request timed out after %s", timeout)}).ToJSON(),
		})
	})
	if !ok {
		if token != nil {
			s.progress.deregister(*token)
		}
		return nil, &RequestFailedError{Message: "session closed"}
	}
	s.metrics.incPending()
	defer s.metrics.decPending()

	data, err := json.Marshal(req)
	if err != nil {
		s.pending.remove(id)
		if token != nil {
			s.progress.deregister(*token)
		}
		return nil, err
	}

	if err := s.transport.Send(ctx, data); err != nil {
		s.pending.remove(id)
		if token != nil {
			s.progress.deregister(*token)
		}
		return nil, NewTransportError("send request", err)
	}

	select {
	case resp := <-respCh:
		if token != nil {
			s.progress.deregister(*token)
		}
		if resp.Error != nil {
			return nil, errorFromWire(resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		s.pending.remove(id)
		if token != nil {
			s.progress.deregister(*token)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &RequestFailedError{Message: "Request cancelled: context canceled", Cause: ctx.Err()}
		}
		return nil, &RequestFailedError{Message: "Request timed out after context deadline", Cause: ctx.Err()}
	}
}

// Notify sends a fire-and-forget notification.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	paramsJSON, err := marshalParams(params)
	if err != nil {
		return err
	}
	n := Notification{JSONRPC: jsonrpcVersion, Method: method, Params: paramsJSON}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.transport.Send(ctx, data); err != nil {
		return NewTransportError("send notification", err)
	}
	return nil
}

// CancelRequest sends notifications/cancelled for an outbound request this
// session itself issued but no longer wants to wait for.
func (s *Session) CancelRequest(ctx context.Context, id RequestID, reason string) error {
	return s.Notify(ctx, NotificationCancelled, cancelledParams{RequestID: id, Reason: reason})
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, &InvalidParamsError{Detail: err.Error()}
	}
	return data, nil
}

type cancelledParams struct {
	RequestID RequestID `json:"requestId"`
	Reason    string    `json:"reason,omitempty"`
}

type progressParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         *float64      `json:"total,omitempty"`
	Message       string        `json:"message,omitempty"`
}

func (s *Session) handleCancelled(ctx context.Context, n Notification) {
	var params cancelledParams
	if err := json.Unmarshal(n.Params, &params); err != nil {
		s.emitError(&ParseError{Cause: err})
		return
	}
	reason := params.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	s.pending.settle(params.RequestID, Response{
		JSONRPC: jsonrpcVersion,
		ID:      params.RequestID,
		Error:   (&RequestFailedError{Message: fmt.Sprintf("Request cancelled: %s", reason)}).ToJSON(),
	})
}

func (s *Session) handleProgress(ctx context.Context, n Notification) {
	var params progressParams
	if err := json.Unmarshal(n.Params, &params); err != nil {
		s.emitError(&ParseError{Cause: err})
		return
	}
	s.progress.dispatch(params.ProgressToken, params.Progress, params.Total, params.Message)
}

func (s *Session) handleTransportError(err error) {
	s.emitError(err)
}

// handleFrame is the Transport's MessageHandler: it classifies one raw
// frame and routes it to the pending table, the notification router, or
// (server role) the method dispatcher (spec §4.4).
func (s *Session) handleFrame(data json.RawMessage) {
	kind, err := peekEnvelope(data)
	if err != nil {
		s.emitError(err)
		return
	}

	switch kind {
	case envelopeResponse:
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			s.emitError(&ParseError{Cause: err})
			return
		}
		s.pending.settle(resp.ID, resp)

	case envelopeNotification:
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			s.emitError(&ParseError{Cause: err})
			return
		}
		s.notify.dispatch(context.Background(), n)

	case envelopeRequest:
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.emitError(&ParseError{Cause: err})
			return
		}
		s.mu.Lock()
		d := s.dispatcher
		state := s.state
		s.mu.Unlock()

		var resp Response
		switch {
		case state != StateReady && req.Method != MethodInitialize:
			// No method other than initialize may reach the dispatcher
			// before the session has observed the initialized notification.
			resp = Response{
				JSONRPC: jsonrpcVersion,
				ID:      req.ID,
				Error:   (&ServerNotInitializedError{Detail: fmt.Sprintf("cannot call %q before initialization completes", req.Method)}).ToJSON(),
			}
		case d == nil:
			resp = Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: (&MethodNotFoundError{Method: req.Method}).ToJSON()}
		default:
			resp = d.dispatch(context.Background(), req)
		}
		respData, err := json.Marshal(resp)
		if err != nil {
			s.emitError(err)
			return
		}
		if err := s.transport.Send(context.Background(), respData); err != nil {
			s.emitError(NewTransportError("send response", err))
		}

	default:
		s.emitError(fmt.Errorf("mcp: unclassified frame"))
	}
}
