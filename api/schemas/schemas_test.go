package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/domsentry/api/schemas"
)

func TestIssueLines(t *testing.T) {
	t.Run("aggregate with examples", func(t *testing.T) {
		issue := schemas.Issue{
			Category: schemas.CategoryForeignScript,
			Message:  "2 scripts from foreign hosts",
			Count:    2,
			Examples: []string{"https://cdn.example.com/a.js", "https://ads.example.net/b.js"},
		}
		assert.Equal(t, []string{
			"2 scripts from foreign hosts",
			"  └─ example #1: https://cdn.example.com/a.js",
			"  └─ example #2: https://ads.example.net/b.js",
		}, issue.Lines())
	})

	t.Run("no examples", func(t *testing.T) {
		issue := schemas.Issue{Category: schemas.CategoryEmptyDiv, Message: "8 empty divs", Count: 8}
		assert.Equal(t, []string{"8 empty divs"}, issue.Lines())
	})
}

func TestParseLevel(t *testing.T) {
	for _, l := range schemas.Levels {
		got, err := schemas.ParseLevel(string(l))
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	_, err := schemas.ParseLevel("fatal")
	assert.EqualError(t, err, `unknown log level "fatal"`)
	_, err = schemas.ParseLevel("")
	assert.Error(t, err)
}

func TestSnapshotEmbedsInfo(t *testing.T) {
	ts := getTestTime(t)
	snap := schemas.Snapshot{
		SnapshotInfo: schemas.SnapshotInfo{Timestamp: ts, Size: 12},
		HTML:         "<p>hello</p>",
		Checksum:     42,
	}

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "2026-03-14T09:26:53.123456789Z", fields["timestamp"], "the metadata is flattened into the record")
	assert.EqualValues(t, 12, fields["size"])
	assert.Equal(t, "<p>hello</p>", fields["html"])
}

func TestLogEntryOmitsEmptyOptionalFields(t *testing.T) {
	entry := schemas.LogEntry{
		ID:        "log_1",
		Timestamp: getTestTime(t),
		Level:     schemas.LevelInfo,
		Message:   "Scan started",
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "details")
	assert.NotContains(t, string(raw), "stackTrace")
	assert.Contains(t, string(raw), `"level":"info"`)
}
