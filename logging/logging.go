// Package logging provides leveled key=value console output for
// NeuraLux services. Bus internals and services log through an injected
// *Logger; there is no process-wide logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	service   string
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		service:   l.service,
	}
}

// WithService returns a new logger tagged with the service name.
func (l *Logger) WithService(service string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		service:   service,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes an entry: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		f := fields[0]
		if l.service != "" {
			merged := make(map[string]interface{}, len(f)+1)
			for k, v := range f {
				merged[k] = v
			}
			merged["service"] = l.service
			f = merged
		}
		fieldStr = formatFields(f)
	} else if l.service != "" {
		fieldStr = formatFields(map[string]interface{}{"service": l.service})
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Bus event methods ---
// Called by the bus client and dispatcher so service logs share one
// vocabulary for transport and routing events.

// Connected logs a successful broker connection.
func (l *Logger) Connected(url string) {
	l.Info("bus_connected", map[string]interface{}{
		"url": url,
	})
}

// Disconnected logs a bus teardown, with the number of in-flight
// requests that were cancelled.
func (l *Logger) Disconnected(cancelled int) {
	l.Info("bus_disconnected", map[string]interface{}{
		"cancelled_requests": cancelled,
	})
}

// HandlerError logs a handler failure during dispatch. The failure is
// contained to that handler; dispatch continues.
func (l *Logger) HandlerError(topic string, err error) {
	l.Error("handler_error", map[string]interface{}{
		"topic": topic,
		"error": err.Error(),
	})
}

// LateReply logs a reply that arrived after its request was resolved.
func (l *Logger) LateReply(topic, correlationID string) {
	l.Debug("late_reply_dropped", map[string]interface{}{
		"topic":          topic,
		"correlation_id": correlationID,
	})
}

// DecodeFailure logs bytes on the wire that could not be decoded.
func (l *Logger) DecodeFailure(topic string, err error) {
	l.Warn("decode_failure", map[string]interface{}{
		"topic": topic,
		"error": err.Error(),
	})
}

// RequestIssued logs an outgoing request (debug only).
func (l *Logger) RequestIssued(topic, correlationID string, timeout time.Duration) {
	l.Debug("request_issued", map[string]interface{}{
		"topic":          topic,
		"correlation_id": correlationID,
		"timeout":        timeout.String(),
	})
}
