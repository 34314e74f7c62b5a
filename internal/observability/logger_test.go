// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/domsentry/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initWithBuffer initializes the global logger against an in-memory writer.
func initWithBuffer(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		})

		GetLogger().Info("This is a test message.")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, palette["green"]+"INFO"+ansiReset, "Info level should be colorized green")
		assert.Contains(t, output, "TestService.")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		})

		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "Log output should be valid JSON")
		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "domsentry.log")
		initWithBuffer(t, config.LoggerConfig{
			Level:   "debug",
			Format:  "json",
			LogFile: logFile,
			MaxSize: 1,
		})

		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "info", ServiceName: "First"})
		logger1 := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))
		logger2 := GetLogger()

		assert.Equal(t, logger1, logger2)
		logger2.Info("test")
		Sync()

		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "loud", Format: "json"})

		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		Sync()

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestInitialize_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	buf := initWithBuffer(t, config.LoggerConfig{
		Level:  "info",
		Format: "console",
		Colors: config.ColorConfig{Info: "green", Warn: "nope"},
	})

	GetLogger().Info("plain")
	Sync()

	assert.Contains(t, buf.String(), "INFO")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestLevelEncoder_UnknownColor(t *testing.T) {
	buf := initWithBuffer(t, config.LoggerConfig{
		Level:  "info",
		Format: "console",
		Colors: config.ColorConfig{Warn: "chartreuse"},
	})

	GetLogger().Warn("uncolored")
	Sync()

	assert.Contains(t, buf.String(), "WARN")
	assert.NotContains(t, buf.String(), ansiReset)
}

func TestSetLevel(t *testing.T) {
	buf := initWithBuffer(t, config.LoggerConfig{Level: "info", Format: "json"})

	GetLogger().Debug("before")
	require.NoError(t, SetLevel("debug"))
	GetLogger().Debug("after")
	require.NoError(t, SetLevel("error"))
	GetLogger().Warn("suppressed")
	Sync()

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")
	assert.NotContains(t, buf.String(), "suppressed")

	err := SetLevel("loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		initWithBuffer(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Equal(t, globalLogger.Load(), GetLogger())
	})
}
