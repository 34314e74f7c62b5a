package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewLogNotifier(zap.New(core))

	n.Success("Snapshot saved", "1.2 kB")
	n.Warning("Found 3 issues", "")
	n.Info("No snapshot", "")
	n.Error("Export failed", "disk full")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "✓ Snapshot saved", entries[0].Message)
	assert.Equal(t, "notify", entries[0].LoggerName)
	assert.Equal(t, "1.2 kB", entries[0].ContextMap()["description"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
	assert.Equal(t, "No snapshot", entries[2].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	r.Info("a", "")
	r.Success("b", "desc")

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, KindSuccess, last.Kind)
	assert.Equal(t, "desc", last.Description)
	assert.False(t, last.Time.IsZero())

	all := r.All()
	require.Len(t, all, 2)
	all[0].Title = "mutated"
	assert.Equal(t, "a", r.All()[0].Title, "All returns a copy")

	assert.Len(t, r.Drain(), 2)
	assert.Empty(t, r.All())
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, b}
	m.Warning("w", "")
	m.Error("e", "")
	m.Success("s", "")
	m.Info("i", "")
	assert.Len(t, a.All(), 4)
	assert.Equal(t, a.All(), b.All())
}

func TestThrottled(t *testing.T) {
	t.Run("drops beyond burst but keeps errors", func(t *testing.T) {
		rec := NewRecorder()
		n := NewThrottled(rec, 0.001, 2)

		for i := 0; i < 5; i++ {
			n.Info("info", "")
		}
		n.Error("boom", "")
		n.Error("boom", "")

		var infos, errs int
		for _, item := range rec.All() {
			switch item.Kind {
			case KindInfo:
				infos++
			case KindError:
				errs++
			}
		}
		assert.Equal(t, 2, infos)
		assert.Equal(t, 2, errs)
	})

	t.Run("zero rate disables throttling", func(t *testing.T) {
		rec := NewRecorder()
		assert.Same(t, Notifier(rec), NewThrottled(rec, 0, 0))
	})
}
