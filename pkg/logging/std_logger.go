package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Log levels in increasing severity
const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// StdLogger implements the Logger interface writing structured entries
// to an io.Writer
type StdLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	level  int
	format string
	fields []Field
}

// NewLogger creates a logger from configuration. The output defaults to
// stdout when the configured file cannot be opened.
func NewLogger(config LogConfig) *StdLogger {
	var out io.Writer = os.Stdout
	if config.Output == "file" && config.FilePath != "" {
		if f, err := os.OpenFile(config.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			out = f
		}
	}

	return &StdLogger{
		mu:     &sync.Mutex{},
		out:    out,
		level:  parseLevel(config.Level),
		format: config.Format,
	}
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// Debug logs a debug message
func (l *StdLogger) Debug(msg string, fields ...Field) {
	l.log(levelDebug, "debug", msg, fields)
}

// Info logs an info message
func (l *StdLogger) Info(msg string, fields ...Field) {
	l.log(levelInfo, "info", msg, fields)
}

// Warn logs a warning message
func (l *StdLogger) Warn(msg string, fields ...Field) {
	l.log(levelWarn, "warn", msg, fields)
}

// Error logs an error message
func (l *StdLogger) Error(msg string, fields ...Field) {
	l.log(levelError, "error", msg, fields)
}

// WithFields returns a new logger with the given fields
func (l *StdLogger) WithFields(fields ...Field) Logger {
	combined := make([]Field, 0, len(l.fields)+len(fields))
	combined = append(combined, l.fields...)
	combined = append(combined, fields...)

	return &StdLogger{
		mu:     l.mu,
		out:    l.out,
		level:  l.level,
		format: l.format,
		fields: combined,
	}
}

// WithContext returns a new logger with the given context. The context
// is currently unused but kept for interface compatibility.
func (l *StdLogger) WithContext(ctx context.Context) Logger {
	return l
}

// LogRunEvent records workflow run events
func (l *StdLogger) LogRunEvent(workflowID string, runID string, event string, data map[string]interface{}) {
	fields := []Field{
		{Key: "workflow_id", Value: workflowID},
		{Key: "run_id", Value: runID},
		{Key: "event", Value: event},
	}
	for key, value := range data {
		fields = append(fields, Field{Key: key, Value: value})
	}
	l.Info("run event", fields...)
}

// LogNodeEvent records node execution events
func (l *StdLogger) LogNodeEvent(workflowID string, runID string, nodeID string, event string, data map[string]interface{}) {
	fields := []Field{
		{Key: "workflow_id", Value: workflowID},
		{Key: "run_id", Value: runID},
		{Key: "node_id", Value: nodeID},
		{Key: "event", Value: event},
	}
	for key, value := range data {
		fields = append(fields, Field{Key: key, Value: value})
	}
	l.Info("node event", fields...)
}

// LogSystemEvent records system-level events
func (l *StdLogger) LogSystemEvent(event string, data map[string]interface{}) {
	fields := []Field{{Key: "event", Value: event}}
	for key, value := range data {
		fields = append(fields, Field{Key: key, Value: value})
	}
	l.Info("system event", fields...)
}

func (l *StdLogger) log(level int, levelName, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     levelName,
		Message:   msg,
	}

	if len(l.fields) > 0 || len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(l.fields)+len(fields))
		for _, field := range l.fields {
			entry.Fields[field.Key] = field.Value
		}
		for _, field := range fields {
			entry.Fields[field.Key] = field.Value
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "text" {
		fmt.Fprintf(l.out, "%s [%s] %s", entry.Timestamp.Format(time.RFC3339), levelName, msg)
		for key, value := range entry.Fields {
			fmt.Fprintf(l.out, " %s=%v", key, value)
		}
		fmt.Fprintln(l.out)
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	fmt.Fprintln(l.out, string(data))
}
