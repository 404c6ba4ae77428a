// Package logging provides the structured, leveled logger used by every
// phase of the shuffle-sort pipeline. Log calls never carry key or payload
// values as arguments in the oblivious phases (C4/C5): logging a
// data-dependent value would itself be an access-pattern leak, so callers
// only ever pass sizes, counts, durations and error kinds.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// LogLevel is the severity of a log entry.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name, case-insensitively.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// LogFormat selects the output encoding.
type LogFormat int

const (
	TextFormat LogFormat = iota
	JSONFormat
)

// entry is one emitted log record.
type entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger is a structured, leveled logger scoped to one component (typically
// one rank, e.g. "rank-2").
type Logger struct {
	mu               sync.RWMutex
	level            LogLevel
	format           LogFormat
	output           io.Writer
	component        string
	enableSanitizing bool
}

// Config configures a new Logger.
type Config struct {
	Level            LogLevel
	Format           LogFormat
	Output           io.Writer
	Component        string
	EnableSanitizing bool
}

// DefaultConfig returns a Config with sensible defaults for a CLI run.
func DefaultConfig() *Config {
	return &Config{
		Level:            InfoLevel,
		Format:           TextFormat,
		Output:           os.Stdout,
		EnableSanitizing: true,
	}
}

// sensitiveFieldPattern matches field names that should never carry raw
// values in this module: anything that looks like it might leak a key,
// ORP ID, or payload slice.
var sensitiveFieldPattern = regexp.MustCompile(`(?i)(^key$|^orp[-_]?id$|^payload$|secret|password|token)`)

// New creates a Logger from config. A nil config uses DefaultConfig.
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	return &Logger{
		level:            config.Level,
		format:           config.Format,
		output:           config.Output,
		component:        config.Component,
		enableSanitizing: config.EnableSanitizing,
	}
}

// WithComponent returns a copy of l scoped to a new component name.
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		level:            l.level,
		format:           l.format,
		output:           l.output,
		component:        component,
		enableSanitizing: l.enableSanitizing,
	}
}

// IsEnabled reports whether level would be emitted.
func (l *Logger) IsEnabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) sanitizeFields(fields map[string]interface{}) map[string]interface{} {
	if !l.enableSanitizing || len(fields) == 0 {
		return fields
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if sensitiveFieldPattern.MatchString(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !l.IsEnabled(level) {
		return
	}

	l.mu.RLock()
	format, output, component := l.format, l.output, l.component
	l.mu.RUnlock()

	e := entry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		Fields:    l.sanitizeFields(fields),
	}
	if component != "" {
		if e.Fields == nil {
			e.Fields = make(map[string]interface{})
		}
		e.Fields["component"] = component
	}

	var line string
	switch format {
	case JSONFormat:
		data, _ := json.Marshal(e)
		line = string(data) + "\n"
	default:
		line = formatText(e)
	}
	output.Write([]byte(line))
}

func formatText(e entry) string {
	var b strings.Builder
	b.WriteString(e.Timestamp.Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(e.Level)
	b.WriteString("] ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		var parts []string
		for k, v := range e.Fields {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, " "))
		b.WriteString("]")
	}
	b.WriteString("\n")
	return b.String()
}

func (l *Logger) Debug(message string, fields ...map[string]interface{}) { l.log(DebugLevel, message, firstOrNil(fields)) }
func (l *Logger) Info(message string, fields ...map[string]interface{})  { l.log(InfoLevel, message, firstOrNil(fields)) }
func (l *Logger) Warn(message string, fields ...map[string]interface{})  { l.log(WarnLevel, message, firstOrNil(fields)) }
func (l *Logger) Error(message string, fields ...map[string]interface{}) { l.log(ErrorLevel, message, firstOrNil(fields)) }

func firstOrNil(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// WithField returns a FieldLogger that attaches key=value to every message.
func (l *Logger) WithField(key string, value interface{}) *FieldLogger {
	return &FieldLogger{logger: l, fields: map[string]interface{}{key: value}}
}

// WithFields returns a FieldLogger that attaches all of fields to every
// message.
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	f := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return &FieldLogger{logger: l, fields: f}
}

// FieldLogger is a Logger bound to a fixed set of structured fields.
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) Debug(message string) { fl.logger.log(DebugLevel, message, fl.fields) }
func (fl *FieldLogger) Info(message string)  { fl.logger.log(InfoLevel, message, fl.fields) }
func (fl *FieldLogger) Warn(message string)  { fl.logger.log(WarnLevel, message, fl.fields) }
func (fl *FieldLogger) Error(message string) { fl.logger.log(ErrorLevel, message, fl.fields) }

// WithField returns a new FieldLogger with an additional field.
func (fl *FieldLogger) WithField(key string, value interface{}) *FieldLogger {
	fields := make(map[string]interface{}, len(fl.fields)+1)
	for k, v := range fl.fields {
		fields[k] = v
	}
	fields[key] = value
	return &FieldLogger{logger: fl.logger, fields: fields}
}
