package common

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Severity represents log message severity levels
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a level name as found in config files and flags
// ("debug", "info", "warn", "warning", "error") to a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return SeverityDebug, nil
	case "", "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return SeverityInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger is the logging contract shared by the tracer components.
// Components never fail on a logging problem; a nil Logger is replaced by
// a NoOpLogger through OrNoOp.
type Logger interface {
	// Log logs a message with the specified severity
	Log(severity Severity, msg string)

	// Logf logs a formatted message with the specified severity
	Logf(severity Severity, format string, args ...interface{})

	// Error logs an error
	Error(err error)

	// Debug logs a debug message
	Debug(msg string)

	// Info logs an info message
	Info(msg string)

	// Warning logs a warning message
	Warning(msg string)
}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NewNoOpLogger()
	}
	return l
}

// FieldLogger is a Logger that can tag its lines with key=value context.
// Both output formats of the command line tool implement it.
type FieldLogger interface {
	Logger
	WithField(key string, value interface{}) FieldLogger
}

// StdLogger writes the plain log format: one "level: message" line per call
// through the standard log package, with fields appended in brackets.
type StdLogger struct {
	out      *log.Logger
	minLevel Severity
	fields   []string
}

// NewStdLogger creates a plain-format logger writing to w.
func NewStdLogger(w io.Writer, minLevel Severity) *StdLogger {
	return &StdLogger{out: log.New(w, "", 0), minLevel: minLevel}
}

// WithField implements FieldLogger. The receiver is not modified.
func (l *StdLogger) WithField(key string, value interface{}) FieldLogger {
	fields := make([]string, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	return &StdLogger{
		out:      l.out,
		minLevel: l.minLevel,
		fields:   append(fields, fmt.Sprintf("%s=%v", key, value)),
	}
}

func (l *StdLogger) Log(severity Severity, msg string) {
	if severity < l.minLevel {
		return
	}
	line := strings.ToLower(severity.String()) + ": " + msg
	if len(l.fields) > 0 {
		line += " [" + strings.Join(l.fields, " ") + "]"
	}
	l.out.Print(line)
}

func (l *StdLogger) Logf(severity Severity, format string, args ...interface{}) {
	if severity < l.minLevel {
		return
	}
	l.Log(severity, fmt.Sprintf(format, args...))
}

func (l *StdLogger) Error(err error) {
	if err != nil {
		l.Log(SeverityError, err.Error())
	}
}

func (l *StdLogger) Debug(msg string)   { l.Log(SeverityDebug, msg) }
func (l *StdLogger) Info(msg string)    { l.Log(SeverityInfo, msg) }
func (l *StdLogger) Warning(msg string) { l.Log(SeverityWarning, msg) }

// NoOpLogger is a logger that doesn't log anything
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-op logger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Log(severity Severity, msg string)                          {}
func (l *NoOpLogger) Logf(severity Severity, format string, args ...interface{}) {}
func (l *NoOpLogger) Error(err error)                                            {}
func (l *NoOpLogger) Debug(msg string)                                           {}
func (l *NoOpLogger) Info(msg string)                                            {}
func (l *NoOpLogger) Warning(msg string)                                         {}
