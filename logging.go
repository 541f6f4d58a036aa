package mcp

import "sync"

// LoggingLevel is the RFC 5424 severity enum used by logging/setLevel and
// notifications/message (spec §4.x logging capability).
type LoggingLevel int

const (
	LogDebug LoggingLevel = iota
	LogInfo
	LogNotice
	LogWarning
	LogError
	LogCritical
	LogAlert
	LogEmergency
)

var loggingLevelNames = map[LoggingLevel]string{
	LogDebug:     "debug",
	LogInfo:      "info",
	LogNotice:    "notice",
	LogWarning:   "warning",
	LogError:     "error",
	LogCritical:  "critical",
	LogAlert:     "alert",
	LogEmergency: "emergency",
}

var loggingLevelValues = func() map[string]LoggingLevel {
	m := make(map[string]LoggingLevel, len(loggingLevelNames))
	for level, name := range loggingLevelNames {
		m[name] = level
	}
	return m
}()

// String returns the wire name of the level (e.g. "warning").
func (l LoggingLevel) String() string {
	if name, ok := loggingLevelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLoggingLevel parses a wire-format level name, returning an
// InvalidParamsError for anything outside the RFC 5424 set.
func ParseLoggingLevel(name string) (LoggingLevel, error) {
	if level, ok := loggingLevelValues[name]; ok {
		return level, nil
	}
	return 0, &InvalidParamsError{Detail: "unknown logging level " + name}
}

// loggingGate tracks the minimum level a server will emit as
// notifications/message, defaulting to LogInfo until a client narrows or
// widens it via logging/setLevel.
type loggingGate struct {
	mu  sync.Mutex
	min LoggingLevel
}

func newLoggingGate() *loggingGate {
	return &loggingGate{min: LogInfo}
}

func (g *loggingGate) setLevel(level LoggingLevel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.min = level
}

func (g *loggingGate) allows(level LoggingLevel) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return level >= g.min
}
