package common

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus entry to the Logger interface. Every message
// carries the entry's fields, so a component can tag its lines once with
// WithField and pass the result down.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger creates a text-formatted logrus logger writing to w.
func NewLogrusLogger(w io.Writer, minLevel Severity) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrusLevel(minLevel))
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// WithField implements FieldLogger.
func (l *LogrusLogger) WithField(key string, value interface{}) FieldLogger {
	return &LogrusLogger{entry: l.entry.WithField(key, value)}
}

func logrusLevel(s Severity) logrus.Level {
	switch s {
	case SeverityDebug:
		return logrus.DebugLevel
	case SeverityWarning:
		return logrus.WarnLevel
	case SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *LogrusLogger) Log(severity Severity, msg string) {
	l.entry.Log(logrusLevel(severity), msg)
}

func (l *LogrusLogger) Logf(severity Severity, format string, args ...interface{}) {
	l.entry.Logf(logrusLevel(severity), format, args...)
}

func (l *LogrusLogger) Error(err error) {
	if err != nil {
		l.entry.WithError(err).Error("operation failed")
	}
}

func (l *LogrusLogger) Debug(msg string)   { l.entry.Debug(msg) }
func (l *LogrusLogger) Info(msg string)    { l.entry.Info(msg) }
func (l *LogrusLogger) Warning(msg string) { l.entry.Warn(msg) }
