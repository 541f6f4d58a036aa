package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool describes one server-exposed capability invokable via tools/call
// (spec §3 "Prompt / Tool").
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema,omitempty"`
}

// ToolHandler executes a validated tool invocation and returns its result.
type ToolHandler func(ctx context.Context, args json.RawMessage) (any, error)

type registeredTool struct {
	tool     Tool
	resolved *jsonschema.Resolved
	handler  ToolHandler
}

// toolRegistry holds every tool a Server has registered, each with its
// resolved input schema so tools/call validates before dispatch
// (spec §4.7 "Tool validation").
//
// tools is read by call/list from the transport read loop and written by
// register/unregister whenever Server.RegisterTool runs after Serve has
// started; mu guards both.
type toolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

func newToolRegistry() *toolRegistry {
	return &toolRegistry{tools: make(map[string]*registeredTool)}
}

// register resolves tool's schema once at registration time so every call
// reuses the compiled validator. An empty schema defaults to {"type":"object"},
// matching the permissive default the pack's MCP client falls back to.
func (r *toolRegistry) register(tool Tool, handler ToolHandler) error {
	if tool.InputSchema == nil {
		tool.InputSchema = &jsonschema.Schema{Type: "object"}
	}
	if tool.InputSchema.Type == "" {
		tool.InputSchema.Type = "object"
	}
	resolved, err := tool.InputSchema.Resolve(nil)
	if err != nil {
		return &ValidationError{Detail: "resolve schema for tool " + tool.Name + ": " + err.Error()}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = &registeredTool{tool: tool, resolved: resolved, handler: handler}
	return nil
}

func (r *toolRegistry) unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

func (r *toolRegistry) list() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, rt := range r.tools {
		out = append(out, rt.tool)
	}
	return out
}

// callParams is the wire shape of a tools/call request.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// call validates args against the registered tool's schema, then invokes
// its handler. A failing validation is reported as InvalidParams whose
// message begins with "Invalid params" (spec §4.7 invariant).
func (r *toolRegistry) call(ctx context.Context, params callParams) (any, error) {
	r.mu.RLock()
	rt, ok := r.tools[params.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &InvalidParamsError{Detail: "Unknown tool: " + params.Name}
	}

	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return nil, &InvalidParamsError{Detail: "arguments is not valid JSON: " + err.Error()}
	}
	if err := rt.resolved.Validate(instance); err != nil {
		return nil, &InvalidParamsError{Detail: err.Error()}
	}

	return rt.handler(ctx, args)
}
