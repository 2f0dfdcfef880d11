package model

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDebug Level = "debug"
)

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelError, LevelDebug:
		return true
	}
	return false
}

// LogEntry represents a single entry in the session's log sequence.
type LogEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Message   string    `json:"message" yaml:"message"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Level     Level     `json:"level" yaml:"level"` // info, warn, error, debug
}

// TransportKind names one of the four transport strategies.
type TransportKind string

const (
	ShortPolling TransportKind = "short-polling"
	LongPolling  TransportKind = "long-polling"
	SSE          TransportKind = "sse"
	WebSocket    TransportKind = "websocket"
)

// TransportKinds lists every transport in selector order.
var TransportKinds = []TransportKind{ShortPolling, LongPolling, SSE, WebSocket}

// Label returns the human-readable name shown in the view.
func (k TransportKind) Label() string {
	switch k {
	case ShortPolling:
		return "Short Polling"
	case LongPolling:
		return "Long Polling"
	case SSE:
		return "Server-Sent Events (SSE)"
	case WebSocket:
		return "WebSocket"
	default:
		return string(k)
	}
}

// ParseTransportKind accepts canonical names and a few short aliases.
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short-polling", "short", "shortpoll", "poll":
		return ShortPolling, nil
	case "long-polling", "long", "longpoll":
		return LongPolling, nil
	case "sse", "eventsource":
		return SSE, nil
	case "websocket", "ws", "socket":
		return WebSocket, nil
	}
	return "", fmt.Errorf("unknown transport %q (want short-polling, long-polling, sse or websocket)", s)
}

// ConnectionStatus is the connectivity indicator shown by the view.
type ConnectionStatus struct {
	Connected  bool          `json:"connected"`
	Method     TransportKind `json:"method"`
	LastUpdate *time.Time    `json:"lastUpdate,omitempty"`
}

// Touch marks the status as updated at t.
func (s *ConnectionStatus) Touch(t time.Time) {
	s.LastUpdate = &t
}
