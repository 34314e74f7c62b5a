// Package logview is the read-only model behind the log viewer: filtering,
// counters, the copy text of one entry and the JSON export.
package logview

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/domsentry/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LevelAll disables level filtering.
const LevelAll = "all"

// Query selects entries. An empty Level means LevelAll and an empty Search
// matches everything.
type Query struct {
	Level  string
	Search string
}

// Validate rejects a level that no entry can carry.
func (q Query) Validate() error {
	if q.Level == "" || q.Level == LevelAll {
		return nil
	}
	_, err := schemas.ParseLevel(q.Level)
	return err
}

// Filter returns the entries matching q, keeping their order. Search is a
// case-insensitive substring match against the message and the details.
func Filter(entries []schemas.LogEntry, q Query) []schemas.LogEntry {
	needle := strings.ToLower(q.Search)
	out := make([]schemas.LogEntry, 0, len(entries))
	for _, e := range entries {
		if q.Level != "" && q.Level != LevelAll && string(e.Level) != q.Level {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.Message), needle) &&
			!strings.Contains(strings.ToLower(e.Details), needle) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Counts are the per-level totals shown under the list.
type Counts struct {
	Total   int `json:"total"`
	Error   int `json:"error"`
	Warning int `json:"warning"`
	Info    int `json:"info"`
	Success int `json:"success"`
}

func Count(entries []schemas.LogEntry) Counts {
	c := Counts{Total: len(entries)}
	for _, e := range entries {
		switch e.Level {
		case schemas.LevelError:
			c.Error++
		case schemas.LevelWarning:
			c.Warning++
		case schemas.LevelInfo:
			c.Info++
		case schemas.LevelSuccess:
			c.Success++
		}
	}
	return c
}

// Format is the plain-text block copied for a single entry.
func Format(e schemas.LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(e.Level)), e.Timestamp.Format("2006-01-02 15:04:05"))
	if e.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", e.Source)
	}
	fmt.Fprintf(&b, "\nMessage:\n%s\n", e.Message)
	if e.Details != "" {
		fmt.Fprintf(&b, "\nDetails:\n%s\n", e.Details)
	}
	if e.StackTrace != "" {
		fmt.Fprintf(&b, "\nStack Trace:\n%s\n", e.StackTrace)
	}
	return strings.TrimSpace(b.String())
}

// ExportName is logs-<RFC3339>.json for the export instant.
func ExportName(now time.Time) string {
	return "logs-" + now.UTC().Format(time.RFC3339) + ".json"
}

// ExportJSON renders the entries as pretty-printed JSON and names the file.
func ExportJSON(entries []schemas.LogEntry, now time.Time) (string, []byte, error) {
	if entries == nil {
		entries = []schemas.LogEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode log entries: %w", err)
	}
	return ExportName(now), append(data, '\n'), nil
}
