package mcp

import "testing"

func TestLoggingGateDefaultsToInfo(t *testing.T) {
	g := newLoggingGate()
	if g.allows(LogDebug) {
		t.Error("expected debug to be filtered out by default")
	}
	if !g.allows(LogInfo) {
		t.Error("expected info to pass the default gate")
	}
}

func TestLoggingGateSetLevel(t *testing.T) {
	g := newLoggingGate()
	g.setLevel(LogError)

	if g.allows(LogWarning) {
		t.Error("expected warning to be filtered out once the gate is raised to error")
	}
	if !g.allows(LogCritical) {
		t.Error("expected critical to pass a gate set at error")
	}
}
