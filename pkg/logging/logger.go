// Package logging provides RayforceDB's structured logger: leveled,
// text or JSON formatted, with per-call field attachment. Grounded on
// the teacher's pkg/logging/logger.go, trimmed of its package-level
// global logger singleton in favor of an explicit *Logger handle built and
// held by the cmd/rayforce composition root — the same "explicit
// handle, not hidden global state" call pkg/vm.Context already makes
// for the same reason (spec §9's redesign note on global mutable state).
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log record's severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	default:
		return Info, fmt.Errorf("logging: invalid level %q", s)
	}
}

// Format selects a Logger's output encoding.
type Format int

const (
	TextFormat Format = iota
	JSONFormat
)

// entry is one emitted log record.
type entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Config configures a new Logger.
type Config struct {
	Level     Level
	Format    Format
	Output    io.Writer
	Component string
}

// DefaultConfig returns Info-level text logging to stderr (spec's REPL
// shares stdout with query output, so diagnostics go to stderr).
func DefaultConfig() Config {
	return Config{Level: Info, Format: TextFormat, Output: os.Stderr}
}

// Logger is RayforceDB's structured logger: one instance per component,
// each with its own mutex guarding its level and its writes.
type Logger struct {
	mu        sync.Mutex
	level     Level
	format    Format
	output    io.Writer
	component string
}

// New returns a Logger built from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return &Logger{level: cfg.Level, format: cfg.Format, output: cfg.Output, component: cfg.Component}
}

// WithComponent returns a derived Logger tagging every record with
// component. It writes to the parent's output and starts from a copy of
// the parent's level and format; a later SetLevel on either Logger does
// not affect the other.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{level: l.level, format: l.format, output: l.output, component: component}
}

// SetLevel adjusts the minimum level this Logger emits.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

func (l *Logger) emit(level Level, msg string, fields map[string]interface{}) {
	if !l.enabled(level) {
		return
	}
	e := entry{Timestamp: time.Now(), Level: level.String(), Component: l.component, Message: msg, Fields: fields}

	l.mu.Lock()
	defer l.mu.Unlock()
	var line string
	if l.format == JSONFormat {
		data, _ := json.Marshal(e)
		line = string(data) + "\n"
	} else {
		line = formatText(e)
	}
	l.output.Write([]byte(line))
}

func formatText(e entry) string {
	var b strings.Builder
	b.WriteString(e.Timestamp.Format("2006-01-02 15:04:05"))
	b.WriteString(" [" + e.Level + "]")
	if e.Component != "" {
		b.WriteString(" (" + e.Component + ")")
	}
	b.WriteString(" " + e.Message)
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		first := true
		for k, v := range e.Fields {
			if !first {
				b.WriteString(" ")
			}
			first = false
			fmt.Fprintf(&b, "%s=%v", k, v)
		}
		b.WriteString("]")
	}
	b.WriteString("\n")
	return b.String()
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.emit(Debug, fmt.Sprintf(format, args...), nil) }
func (l *Logger) Infof(format string, args ...interface{})  { l.emit(Info, fmt.Sprintf(format, args...), nil) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.emit(Warn, fmt.Sprintf(format, args...), nil) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.emit(Error, fmt.Sprintf(format, args...), nil) }

// WithFields returns a FieldLogger that attaches fields to every record
// it emits.
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	f := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return &FieldLogger{logger: l, fields: f}
}

// FieldLogger is a Logger with a fixed set of attached fields.
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) Debug(msg string) { fl.logger.emit(Debug, msg, fl.fields) }
func (fl *FieldLogger) Info(msg string)  { fl.logger.emit(Info, msg, fl.fields) }
func (fl *FieldLogger) Warn(msg string)  { fl.logger.emit(Warn, msg, fl.fields) }
func (fl *FieldLogger) Error(msg string) { fl.logger.emit(Error, msg, fl.fields) }
