package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Client is the capability-scoped facade over a Session for the peer that
// initiates a connection (spec §2 "Client Façade"). Each convenience call
// enforces the server capability it depends on before touching the wire.
type Client struct {
	session *Session
	info    Implementation
	caps    ClientCapabilities

	mu           sync.Mutex
	serverCaps   ServerCapabilities
	serverInfo   Implementation
	instructions string
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithClientCapabilities declares which optional client-side features
// (roots, sampling) this Client advertises during initialize.
func WithClientCapabilities(caps ClientCapabilities) ClientOption {
	return func(c *Client) { c.caps = caps }
}

// NewClient wraps session with the client-role convenience calls. info is
// sent as clientInfo in the initialize request.
func NewClient(session *Session, info Implementation, opts ...ClientOption) *Client {
	c := &Client{session: session, info: info}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the underlying Session, for callers that need direct
// access to Close, OnError, or OnAnyNotification.
func (c *Client) Session() *Session { return c.session }

// ServerInfo returns the peer's advertised Implementation, valid only
// after Initialize succeeds.
func (c *Client) ServerInfo() Implementation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Instructions returns the server's free-form initialize instructions, if any.
func (c *Client) Instructions() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instructions
}

func (c *Client) serverCapsSnapshot() *ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	caps := c.serverCaps
	return &caps
}

// Initialize connects the transport if needed, performs the initialize
// handshake, and — on a matching protocol version — marks the session
// Ready and sends the best-effort initialized notification (spec §4.3).
// A mismatched protocol version closes the session and returns
// RequestFailed with the message the spec's boundary test matches against.
func (c *Client) Initialize(ctx context.Context, extra ...InitializeParams) (InitializeResult, error) {
	params := InitializeParams{
		Capabilities: c.caps,
		ClientInfo:   c.info,
	}
	if len(extra) > 0 {
		params = extra[0]
		params.ClientInfo = c.info
	}
	params.ProtocolVersion = LatestProtocolVersion

	if c.session.State() == StateDisconnected {
		if err := c.session.Connect(ctx); err != nil {
			return InitializeResult{}, err
		}
	}

	raw, err := c.session.Call(ctx, MethodInitialize, params, nil)
	if err != nil {
		return InitializeResult{}, err
	}

	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return InitializeResult{}, &ParseError{Cause: err}
	}
	if result.ProtocolVersion != LatestProtocolVersion {
		_ = c.session.Close()
		return InitializeResult{}, &RequestFailedError{
			Message: fmt.Sprintf("Protocol version mismatch: client wants %s, server returned %s", LatestProtocolVersion, result.ProtocolVersion),
		}
	}

	c.mu.Lock()
	c.serverCaps = result.Capabilities
	c.serverInfo = result.ServerInfo
	c.instructions = result.Instructions
	c.mu.Unlock()

	c.session.MarkReady()
	_ = c.session.Notify(ctx, NotificationInitialized, struct{}{}) // best-effort per spec §4.3

	return result, nil
}

// Close terminates the underlying session.
func (c *Client) Close() error { return c.session.Close() }

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

// ListTools returns the server's registered tools. Fails fast with
// RequestFailed if the server never advertised tools.listChanged
// (spec §8 boundary behavior).
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	if !c.serverCapsSnapshot().supportsToolsListChanged() {
		return nil, &RequestFailedError{Message: "Server does not support tool listing"}
	}
	raw, err := c.session.Call(ctx, MethodToolsList, struct{}{}, nil)
	if err != nil {
		return nil, err
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ParseError{Cause: err}
	}
	return result.Tools, nil
}

// CallTool invokes a tool by name, optionally streaming progress through
// onProgress (spec §4.6).
func (c *Client) CallTool(ctx context.Context, name string, arguments any, onProgress ProgressHandler) (json.RawMessage, error) {
	if !c.serverCapsSnapshot().supportsToolsListChanged() {
		return nil, &RequestFailedError{Message: "Server does not support tool listing"}
	}
	argsJSON, err := marshalParams(arguments)
	if err != nil {
		return nil, err
	}
	return c.session.Call(ctx, MethodToolsCall, callParams{Name: name, Arguments: argsJSON}, onProgress)
}

type listPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
}

// ListPrompts returns the server's registered prompts.
func (c *Client) ListPrompts(ctx context.Context) ([]Prompt, error) {
	if !c.serverCapsSnapshot().supportsPromptsListChanged() {
		return nil, &RequestFailedError{Message: "Server does not support prompt listing"}
	}
	raw, err := c.session.Call(ctx, MethodPromptsList, struct{}{}, nil)
	if err != nil {
		return nil, err
	}
	var result listPromptsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ParseError{Cause: err}
	}
	return result.Prompts, nil
}

// GetPrompt renders a prompt by name with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (PromptResult, error) {
	if !c.serverCapsSnapshot().supportsPromptsListChanged() {
		return PromptResult{}, &RequestFailedError{Message: "Server does not support prompt listing"}
	}
	raw, err := c.session.Call(ctx, MethodPromptsGet, getParams{Name: name, Arguments: arguments}, nil)
	if err != nil {
		return PromptResult{}, err
	}
	var result PromptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return PromptResult{}, &ParseError{Cause: err}
	}
	return result, nil
}

// ExecutePrompt is an alias for GetPrompt matching the spec's
// "execute_prompt" naming for callers that render and immediately use a
// prompt's rendered messages.
func (c *Client) ExecutePrompt(ctx context.Context, name string, arguments map[string]string) (PromptResult, error) {
	return c.GetPrompt(ctx, name, arguments)
}

type listResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ListResources returns the server's registered resources.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	if !c.serverCapsSnapshot().supportsResourcesListChanged() {
		return nil, &RequestFailedError{Message: "Server does not support resource listing"}
	}
	raw, err := c.session.Call(ctx, MethodResourcesList, struct{}{}, nil)
	if err != nil {
		return nil, err
	}
	var result listResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ParseError{Cause: err}
	}
	return result.Resources, nil
}

type listResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// ListResourceTemplates returns the server's advertised resource templates.
func (c *Client) ListResourceTemplates(ctx context.Context) ([]ResourceTemplate, error) {
	if !c.serverCapsSnapshot().supportsResourcesListChanged() {
		return nil, &RequestFailedError{Message: "Server does not support resource listing"}
	}
	raw, err := c.session.Call(ctx, MethodResourcesTemplatesList, struct{}{}, nil)
	if err != nil {
		return nil, err
	}
	var result listResourceTemplatesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ParseError{Cause: err}
	}
	return result.ResourceTemplates, nil
}

// ReadResource fetches the current contents of a resource by uri.
func (c *Client) ReadResource(ctx context.Context, uri string) (ResourceContents, error) {
	if !c.serverCapsSnapshot().supportsResourcesListChanged() {
		return ResourceContents{}, &RequestFailedError{Message: "Server does not support resource listing"}
	}
	raw, err := c.session.Call(ctx, MethodResourcesRead, struct {
		URI string `json:"uri"`
	}{URI: uri}, nil)
	if err != nil {
		return ResourceContents{}, err
	}
	var result ResourceContents
	if err := json.Unmarshal(raw, &result); err != nil {
		return ResourceContents{}, &ParseError{Cause: err}
	}
	return result, nil
}

// SubscribeToResource asks the server to notify onUpdate whenever uri
// changes. Requires the server to have advertised resources.subscribe.
func (c *Client) SubscribeToResource(ctx context.Context, uri string, onUpdate func(uri string)) error {
	if !c.serverCapsSnapshot().supportsResourceSubscribe() {
		return &RequestFailedError{Message: "Server does not support resource subscriptions"}
	}
	_, err := c.session.Call(ctx, MethodResourcesSubscribe, struct {
		URI string `json:"uri"`
	}{URI: uri}, nil)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		c.session.OnNotification(NotificationResourcesUpdated, func(ctx context.Context, n Notification) {
			var params struct {
				URI string `json:"uri"`
			}
			if json.Unmarshal(n.Params, &params) == nil && params.URI == uri {
				onUpdate(params.URI)
			}
		})
	}
	return nil
}

// SetLoggingLevel requests the server gate its log notifications at level.
func (c *Client) SetLoggingLevel(ctx context.Context, level LoggingLevel) error {
	if !c.serverCapsSnapshot().supportsLogging() {
		return &RequestFailedError{Message: "Server does not support logging"}
	}
	_, err := c.session.Call(ctx, MethodLoggingSetLevel, struct {
		Level string `json:"level"`
	}{Level: level.String()}, nil)
	return err
}

// SamplingMessage is one entry in a createMessage conversation.
type SamplingMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// CreateMessageParams are the parameters of sampling/createMessage.
type CreateMessageParams struct {
	Messages    []SamplingMessage `json:"messages"`
	MaxTokens   int               `json:"maxTokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

// CreateMessageResult is the result of sampling/createMessage.
type CreateMessageResult struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
	Model   string `json:"model,omitempty"`
}

// CreateMessage asks the peer to sample a completion. This call targets
// the peer's sampling capability rather than anything this Client itself
// advertised, so it is not gated on serverCaps — the peer's dispatcher is
// responsible for rejecting it if sampling isn't supported there.
func (c *Client) CreateMessage(ctx context.Context, params CreateMessageParams) (CreateMessageResult, error) {
	raw, err := c.session.Call(ctx, MethodSamplingCreateMessage, params, nil)
	if err != nil {
		return CreateMessageResult{}, err
	}
	var result CreateMessageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return CreateMessageResult{}, &ParseError{Cause: err}
	}
	return result, nil
}

// Root is one workspace root a client exposes to a server via roots/list.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// ListRoots asks the peer for its current workspace roots. Like
// CreateMessage, this targets the peer's own roots capability.
func (c *Client) ListRoots(ctx context.Context) ([]Root, error) {
	raw, err := c.session.Call(ctx, MethodRootsList, struct{}{}, nil)
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
