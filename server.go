package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Server is the registry-backed facade for the peer that accepts a
// connection (spec §2 "Server Façade"). It owns the method dispatcher and
// the tool/prompt/resource/logging registries, and fires list_changed /
// updated notifications on mutation.
type Server struct {
	info         Implementation
	instructions string
	metrics      *metricsRecorder

	mu       sync.Mutex
	caps     ServerCapabilities
	peerCaps ClientCapabilities
	session  *Session

	dispatcher *dispatcher
	tools      *toolRegistry
	prompts    *promptRegistry
	resources  *resourceRegistry
	logging    *loggingGate

	// subscriberID identifies this Server's one connected peer to the
	// resource registry's subscription set. A Server serves a single
	// Session at a time, so one generated id per Server is sufficient.
	subscriberID string
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithInstructions sets the free-form instructions returned in the
// initialize result.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) { s.instructions = instructions }
}

// WithServerMetrics attaches a prometheus-backed metrics recorder to the
// dispatcher.
func WithServerMetrics(m *metricsRecorder) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer constructs a Server advertising info as its serverInfo.
// Capabilities are built up lazily as Register* calls are made.
func NewServer(info Implementation, opts ...ServerOption) *Server {
	s := &Server{
		info:         info,
		dispatcher:   newDispatcher(),
		prompts:      newPromptRegistry(),
		logging:      newLoggingGate(),
		subscriberID: uuid.NewString(),
	}
	s.tools = newToolRegistry()
	s.resources = newResourceRegistry(s)

	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher.metrics = s.metrics

	s.dispatcher.register(MethodInitialize, s.handleInitialize)
	s.dispatcher.register(MethodPing, s.handlePing)

	return s
}

// Notify implements resourceEmitter by forwarding to the attached session,
// no-op before Serve is called (e.g. resources registered at startup,
// before the first connection, never need to announce a change).
func (s *Server) Notify(ctx context.Context, method string, params any) error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Notify(ctx, method, params)
}

// Serve wires this Server's dispatcher into session, connects the
// transport, and marks the session Ready once it observes the client's
// initialized notification (spec §4.3, §4.7).
func (s *Server) Serve(ctx context.Context, session *Session) error {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	session.SetDispatcher(s.dispatcher)
	session.OnNotification(NotificationInitialized, func(ctx context.Context, n Notification) {
		session.MarkReady()
	})

	if err := session.Connect(ctx); err != nil {
		return err
	}

	select {
	case <-session.Done():
		return nil
	case <-ctx.Done():
		return session.Close()
	}
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (any, error) {
	return struct{}{}, nil
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	var req InitializeParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &ParseError{Cause: err}
	}

	s.mu.Lock()
	caps := s.caps
	s.peerCaps = req.Capabilities
	s.mu.Unlock()

	return InitializeResult{
		ProtocolVersion: LatestProtocolVersion,
		Capabilities:    caps,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

// RegisterTool adds tool to the registry, resolving its input schema.
// The first call lazily advertises the tools capability and wires
// tools/list and tools/call into the dispatcher.
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) error {
	if err := s.tools.register(tool, handler); err != nil {
		return err
	}

	s.mu.Lock()
	firstTool := s.caps.Tools == nil
	if firstTool {
		s.caps.Tools = &ToolsCapability{ListChanged: true}
		s.dispatcher.register(MethodToolsList, s.handleListTools)
		s.dispatcher.register(MethodToolsCall, s.handleCallTool)
	}
	s.mu.Unlock()

	if !firstTool {
		s.emitIfReady(NotificationToolsListChanged)
	}
	return nil
}

func (s *Server) handleListTools(ctx context.Context, params json.RawMessage) (any, error) {
	return struct {
		Tools []Tool `json:"tools"`
	}{Tools: s.tools.list()}, nil
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (any, error) {
	var req callParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &InvalidParamsError{Detail: err.Error()}
	}
	result, err := s.tools.call(ctx, req)
	if s.metrics != nil {
		s.metrics.recordToolCall(req.Name, err == nil)
	}
	return result, err
}

// RegisterPrompt adds prompt to the registry, lazily advertising the
// prompts capability on first registration.
func (s *Server) RegisterPrompt(prompt Prompt, handler PromptHandler) {
	s.prompts.register(prompt, handler)

	s.mu.Lock()
	firstPrompt := s.caps.Prompts == nil
	if firstPrompt {
		s.caps.Prompts = &PromptsCapability{ListChanged: true}
		s.dispatcher.register(MethodPromptsList, s.handleListPrompts)
		s.dispatcher.register(MethodPromptsGet, s.handleGetPrompt)
	}
	s.mu.Unlock()

	if !firstPrompt {
		s.emitIfReady(NotificationPromptsListChanged)
	}
}

func (s *Server) handleListPrompts(ctx context.Context, params json.RawMessage) (any, error) {
	return struct {
		Prompts []Prompt `json:"prompts"`
	}{Prompts: s.prompts.list()}, nil
}

func (s *Server) handleGetPrompt(ctx context.Context, params json.RawMessage) (any, error) {
	var req getParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &InvalidParamsError{Detail: err.Error()}
	}
	return s.prompts.get(ctx, req)
}

// AddOrReplaceResource registers or updates a resource, lazily advertising
// the resources capability on first registration.
func (s *Server) AddOrReplaceResource(ctx context.Context, resource Resource, reader ResourceReader) {
	s.mu.Lock()
	firstResource := s.caps.Resources == nil
	if firstResource {
		s.caps.Resources = &ResourcesCapability{ListChanged: true, Subscribe: true}
		s.dispatcher.register(MethodResourcesList, s.handleListResources)
		s.dispatcher.register(MethodResourcesTemplatesList, s.handleListResourceTemplates)
		s.dispatcher.register(MethodResourcesRead, s.handleReadResource)
		s.dispatcher.register(MethodResourcesSubscribe, s.handleSubscribeResource)
		s.dispatcher.register(MethodResourcesUnsubscribe, s.handleUnsubscribeResource)
	}
	s.mu.Unlock()

	s.resources.addOrReplace(ctx, resource, reader)
}

// SetResourceTemplates replaces the advertised resource template list.
func (s *Server) SetResourceTemplates(templates []ResourceTemplate) {
	s.resources.setTemplates(templates)
}

// DeleteResource removes a resource and its subscribers.
func (s *Server) DeleteResource(ctx context.Context, uri string) {
	s.resources.delete(ctx, uri)
}

func (s *Server) handleListResources(ctx context.Context, params json.RawMessage) (any, error) {
	return struct {
		Resources []Resource `json:"resources"`
	}{Resources: s.resources.list()}, nil
}

func (s *Server) handleListResourceTemplates(ctx context.Context, params json.RawMessage) (any, error) {
	return struct {
		ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	}{ResourceTemplates: s.resources.listTemplates()}, nil
}

func (s *Server) handleReadResource(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &InvalidParamsError{Detail: err.Error()}
	}
	return s.resources.read(ctx, req.URI)
}

func (s *Server) handleSubscribeResource(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &InvalidParamsError{Detail: err.Error()}
	}
	if err := s.resources.subscribe(req.URI, s.subscriberID); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (s *Server) handleUnsubscribeResource(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &InvalidParamsError{Detail: err.Error()}
	}
	s.resources.unsubscribe(req.URI, s.subscriberID)
	return struct{}{}, nil
}

// EnableLogging advertises the logging capability and wires up
// logging/setLevel.
func (s *Server) EnableLogging() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.caps.Logging != nil {
		return
	}
	s.caps.Logging = &LoggingCapability{}
	s.dispatcher.register(MethodLoggingSetLevel, s.handleSetLevel)
}

func (s *Server) handleSetLevel(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &InvalidParamsError{Detail: err.Error()}
	}
	level, err := ParseLoggingLevel(req.Level)
	if err != nil {
		return nil, err
	}
	s.logging.setLevel(level)
	return struct{}{}, nil
}

// PublishLogMessage sends notifications/message if level passes the
// currently configured threshold (spec §4.7 "Logging level").
func (s *Server) PublishLogMessage(ctx context.Context, level LoggingLevel, logger string, data any) error {
	if !s.logging.allows(level) {
		return nil
	}
	return s.Notify(ctx, NotificationMessage, struct {
		Level  string `json:"level"`
		Logger string `json:"logger,omitempty"`
		Data   any    `json:"data"`
	}{Level: level.String(), Logger: logger, Data: data})
}

// peerCapsSnapshot returns the ClientCapabilities the connected peer
// declared at initialize (spec §4.7 capability-gating table: sampling and
// roots are capabilities the client declares and the server calls into).
func (s *Server) peerCapsSnapshot() *ClientCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps := s.peerCaps
	return &caps
}

// CreateMessage asks the connected client to sample a completion via
// sampling/createMessage, refusing client-side if the peer never
// advertised a sampling capability at initialize.
func (s *Server) CreateMessage(ctx context.Context, params CreateMessageParams) (CreateMessageResult, error) {
	if !s.peerCapsSnapshot().supportsSampling() {
		return CreateMessageResult{}, &RequestFailedError{Message: "Peer does not support sampling"}
	}
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	raw, err := session.Call(ctx, MethodSamplingCreateMessage, params, nil)
	if err != nil {
		return CreateMessageResult{}, err
	}
	var result CreateMessageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return CreateMessageResult{}, &ParseError{Cause: err}
	}
	return result, nil
}

// ListRoots asks the connected client for its current workspace roots via
// roots/list, refusing client-side if the peer never advertised
// roots.listChanged at initialize.
func (s *Server) ListRoots(ctx context.Context) ([]Root, error) {
	if !s.peerCapsSnapshot().supportsRootsListChanged() {
		return nil, &RequestFailedError{Message: "Peer does not support roots listing"}
	}
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	raw, err := session.Call(ctx, MethodRootsList, struct{}{}, nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Roots []Root `json:"roots"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ParseError{Cause: err}
	}
	return result.Roots, nil
}

// RegisterMethod adds or replaces an arbitrary method handler, for
// protocol extensions beyond the built-in tool/prompt/resource/logging
// surfaces (spec §3 "RegisteredMethod": last registration wins).
func (s *Server) RegisterMethod(name string, handler HandlerFunc) {
	s.dispatcher.register(name, handler)
}

func (s *Server) emitIfReady(method string) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session != nil && session.State() == StateReady {
		_ = session.Notify(context.Background(), method, struct{}{})
	}
}
