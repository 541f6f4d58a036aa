package mcp_test

import (
	"testing"

	mcp "github.com/drengskapur/mcp-go"
)

func TestLoggingLevelStringAndParse(t *testing.T) {
	tests := []struct {
		level mcp.LoggingLevel
		name  string
	}{
		{mcp.LogDebug, "debug"},
		{mcp.LogInfo, "info"},
		{mcp.LogNotice, "notice"},
		{mcp.LogWarning, "warning"},
		{mcp.LogError, "error"},
		{mcp.LogCritical, "critical"},
		{mcp.LogAlert, "alert"},
		{mcp.LogEmergency, "emergency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.level.String() != tt.name {
				t.Errorf("String() = %q, want %q", tt.level.String(), tt.name)
			}
			parsed, err := mcp.ParseLoggingLevel(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if parsed != tt.level {
				t.Errorf("ParseLoggingLevel(%q) = %v, want %v", tt.name, parsed, tt.level)
			}
		})
	}
}

func TestParseLoggingLevelUnknown(t *testing.T) {
	_, err := mcp.ParseLoggingLevel("bogus")
	if err == nil {
		t.Fatal("expected an error for an unrecognized level name")
	}
}

func TestLoggingLevelOrdering(t *testing.T) {
	if !(mcp.LogDebug < mcp.LogInfo && mcp.LogInfo < mcp.LogWarning && mcp.LogWarning < mcp.LogEmergency) {
		t.Error("expected logging levels to be ordered from least to most severe")
	}
}
