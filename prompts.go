package mcp

import (
	"context"
	"sync"
)

// PromptArgument describes one named input a Prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Prompt is a named, addressable prompt template (spec §3 "Prompt / Tool").
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptMessage is one turn returned by a prompt handler.
type PromptMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// PromptResult is the result of prompts/get.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptHandler renders a prompt given its arguments, already validated
// against the prompt's required-argument declarations.
type PromptHandler func(ctx context.Context, args map[string]string) (PromptResult, error)

type registeredPrompt struct {
	prompt  Prompt
	handler PromptHandler
}

// promptRegistry holds every prompt a Server has registered (spec §4.7
// "Prompt arguments").
//
// prompts is read by get/list from the transport read loop and written by
// register/unregister whenever Server.RegisterPrompt runs after Serve has
// started; mu guards both.
type promptRegistry struct {
	mu      sync.RWMutex
	prompts map[string]*registeredPrompt
}

func newPromptRegistry() *promptRegistry {
	return &promptRegistry{prompts: make(map[string]*registeredPrompt)}
}

func (r *promptRegistry) register(prompt Prompt, handler PromptHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[prompt.Name] = &registeredPrompt{prompt: prompt, handler: handler}
}

func (r *promptRegistry) unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prompts, name)
}

func (r *promptRegistry) list() []Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Prompt, 0, len(r.prompts))
	for _, rp := range r.prompts {
		out = append(out, rp.prompt)
	}
	return out
}

// getParams is the wire shape of a prompts/get request.
type getParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// get validates that every argument the prompt declares required is
// present, then renders it. Missing arguments are reported as
// InvalidParams("Missing required argument: <name>") (spec §4.7).
func (r *promptRegistry) get(ctx context.Context, params getParams) (PromptResult, error) {
	r.mu.RLock()
	rp, ok := r.prompts[params.Name]
	r.mu.RUnlock()
	if !ok {
		return PromptResult{}, &InvalidParamsError{Detail: "Unknown prompt: " + params.Name}
	}

	for _, arg := range rp.prompt.Arguments {
		if !arg.Required {
			continue
		}
		if _, present := params.Arguments[arg.Name]; !present {
			return PromptResult{}, &InvalidParamsError{Detail: "Missing required argument: " + arg.Name}
		}
	}

	return rp.handler(ctx, params.Arguments)
}
