package schemas

import (
	"fmt"
	"time"
)

// -- Runtime Log Schemas --

// Level classifies an intercepted runtime event.
type Level string

// Constants for the four levels a LogEntry can carry.
const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
)

// Levels lists every level in display order.
var Levels = []Level{LevelError, LevelWarning, LevelInfo, LevelSuccess}

// ParseLevel converts user input into a Level.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// LogEntry is a structured runtime log or error record. Entries are immutable
// once created and are only destroyed by capacity eviction or an explicit clear.
type LogEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Source     string    `json:"source,omitempty"`
	StackTrace string    `json:"stackTrace,omitempty"`
}
