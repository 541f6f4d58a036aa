package mcp

import "testing"

func TestServerCapabilitiesGating(t *testing.T) {
	var nilCaps *ServerCapabilities
	if nilCaps.supportsToolsListChanged() {
		t.Error("nil capabilities should support nothing")
	}

	caps := &ServerCapabilities{
		Tools:     &ToolsCapability{ListChanged: true},
		Prompts:   &PromptsCapability{ListChanged: false},
		Resources: &ResourcesCapability{Subscribe: true},
		Logging:   &LoggingCapability{},
	}

	if !caps.supportsToolsListChanged() {
		t.Error("expected tools listChanged to be supported")
	}
	if caps.supportsPromptsListChanged() {
		t.Error("expected prompts listChanged to be unsupported")
	}
	if caps.supportsResourcesListChanged() {
		t.Error("expected resources listChanged to be unsupported (not set)")
	}
	if !caps.supportsResourceSubscribe() {
		t.Error("expected resource subscribe to be supported")
	}
	if !caps.supportsLogging() {
		t.Error("expected logging to be supported")
	}
}

func TestClientCapabilitiesGating(t *testing.T) {
	var nilCaps *ClientCapabilities
	if nilCaps.supportsSampling() {
		t.Error("nil capabilities should support nothing")
	}

	caps := &ClientCapabilities{
		Roots:    &RootsCapability{ListChanged: true},
		Sampling: &SamplingCapability{},
	}
	if !caps.supportsSampling() {
		t.Error("expected sampling to be supported")
	}
	if !caps.supportsRootsListChanged() {
		t.Error("expected roots listChanged to be supported")
	}
}
