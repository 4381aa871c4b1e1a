package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(level, format string) (*StdLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &StdLogger{
		mu:     &sync.Mutex{},
		out:    &buf,
		level:  parseLevel(level),
		format: format,
	}, &buf
}

func TestJSONFormat(t *testing.T) {
	logger, buf := bufferLogger("info", "json")

	logger.Info("run started", Field{Key: "run_id", Value: "run-1"})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "run started", entry.Message)
	assert.Equal(t, "run-1", entry.Fields["run_id"])
	assert.False(t, entry.Timestamp.IsZero())
}

func TestTextFormat(t *testing.T) {
	logger, buf := bufferLogger("info", "text")

	logger.Warn("slow provider", Field{Key: "provider", Value: "media"})

	line := buf.String()
	assert.Contains(t, line, "[warn]")
	assert.Contains(t, line, "slow provider")
	assert.Contains(t, line, "provider=media")
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := bufferLogger("warn", "json")

	logger.Debug("ignored")
	logger.Info("also ignored")
	assert.Empty(t, buf.String())

	logger.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, levelInfo, parseLevel("verbose"))
	assert.Equal(t, levelInfo, parseLevel(""))
	assert.Equal(t, levelDebug, parseLevel("debug"))
	assert.Equal(t, levelError, parseLevel("error"))
}

func TestWithFields(t *testing.T) {
	logger, buf := bufferLogger("info", "json")

	child := logger.WithFields(Field{Key: "workflow_id", Value: "wf-1"})
	child.Info("node done", Field{Key: "node_id", Value: "script"})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "wf-1", entry.Fields["workflow_id"])
	assert.Equal(t, "script", entry.Fields["node_id"])

	// The parent logger is unchanged.
	buf.Reset()
	logger.Info("bare")
	entry = LogEntry{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry.Fields, "workflow_id")
}

func TestLogRunEvent(t *testing.T) {
	logger, buf := bufferLogger("info", "json")

	logger.LogRunEvent("wf-1", "run-1", "run_started", map[string]interface{}{"task": "promo"})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run event", entry.Message)
	assert.Equal(t, "wf-1", entry.Fields["workflow_id"])
	assert.Equal(t, "run-1", entry.Fields["run_id"])
	assert.Equal(t, "run_started", entry.Fields["event"])
	assert.Equal(t, "promo", entry.Fields["task"])
}

func TestLogNodeEvent(t *testing.T) {
	logger, buf := bufferLogger("info", "json")

	logger.LogNodeEvent("wf-1", "run-1", "video", "node_completed", nil)

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "node event", entry.Message)
	assert.Equal(t, "video", entry.Fields["node_id"])
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelflow.log")

	logger := NewLogger(LogConfig{Level: "info", Format: "text", Output: "file", FilePath: path})
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewLoggerBadFileFallsBackToStdout(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "info", Format: "text", Output: "file", FilePath: "/nonexistent/dir/log"})
	require.NotNil(t, logger)

	// Logging must not panic even though the file could not be opened.
	logger.Info("still works")
}
