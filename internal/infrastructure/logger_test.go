package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqpanel/internal/config"
)

func readLastLogEntry(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := config.LoggingConfig{
		Level:    "info",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	logger.Info("test message", "key", "value")
	require.NoError(t, CloseLogFile())

	entry := readLastLogEntry(t, logFile)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestRunIDInjection(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "test.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "debug",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)

	ctx := WithRunID(context.Background(), "run-123")
	logger.InfoContext(ctx, "test with run")
	require.NoError(t, CloseLogFile())

	entry := readLastLogEntry(t, logFile)
	assert.Equal(t, "run-123", entry["run_id"])
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		logDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"warn", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewJSONLogger(&buf, &slog.HandlerOptions{Level: parseLogLevel(tt.level)})

			logger.Debug("debug line")
			assert.Equal(t, tt.logDebug, strings.Contains(buf.String(), "debug line"))

			logger.Error("error line")
			assert.Contains(t, buf.String(), "error line")
		})
	}
}

func TestInitializeLogger_BadFilePath(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Output:   "file",
		FilePath: filepath.Join(blocker, "app.log"),
	})
	assert.Error(t, err)
}

func TestRunIDHelpers(t *testing.T) {
	assert.Equal(t, "", GetRunID(context.Background()))

	ctx := EnsureRunID(context.Background())
	runID := GetRunID(ctx)
	assert.NotEmpty(t, runID)

	assert.Equal(t, runID, GetRunID(EnsureRunID(ctx)), "existing run ID must be kept")
	assert.NotEqual(t, GenerateRunID(), GenerateRunID())
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, nil)

	WithComponent(logger, "pruner").Info("component test")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pruner", entry["component"])

	buf.Reset()
	WithError(logger, os.ErrNotExist).Info("error test")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["error"], "file does not exist")

	assert.Same(t, logger, WithError(logger, nil))
}
