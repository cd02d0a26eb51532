package pkg

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// LogLevel is the verbosity of the package logger
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// Logger wraps a logrus.Logger shared by the commands and the server
type Logger struct {
	logger *log.Logger
}

var defaultLogger *Logger

func init() {
	defaultLogger = NewLogger(LogLevelInfo)
}

func textFormatter() log.Formatter {
	return &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// NewLogger creates a logger writing text lines with full timestamps
func NewLogger(level LogLevel) *Logger {
	logger := log.New()
	logger.SetLevel(level.logrus())
	logger.SetFormatter(textFormatter())
	return &Logger{logger: logger}
}

func (l LogLevel) logrus() log.Level {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel
	case LogLevelWarn:
		return log.WarnLevel
	case LogLevelError:
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// ParseLogLevel accepts debug, info, warn or error
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	}
	return LogLevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// SetLogLevel sets the level of the default logger
func SetLogLevel(level LogLevel) {
	defaultLogger.logger.SetLevel(level.logrus())
}

// SetLogLevelFromString sets the level of the default logger by name
func SetLogLevelFromString(s string) error {
	level, err := ParseLogLevel(s)
	if err != nil {
		return err
	}
	SetLogLevel(level)
	return nil
}

// SetFormatFromString switches the default logger between "text" and "json"
func SetFormatFromString(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		SetFormatter(textFormatter())
	case "json":
		SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	default:
		return fmt.Errorf("invalid log format: %s", s)
	}
	return nil
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	defaultLogger.logger.Debugf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	defaultLogger.logger.Infof(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	defaultLogger.logger.Warnf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	defaultLogger.logger.Errorf(format, args...)
}

// IsDebugEnabled reports whether debug messages are emitted
func IsDebugEnabled() bool {
	return defaultLogger.logger.IsLevelEnabled(log.DebugLevel)
}

// SetFormatter sets the formatter of the default logger
func SetFormatter(formatter log.Formatter) {
	defaultLogger.logger.SetFormatter(formatter)
}

// SetOutput sets the output of the default logger
func SetOutput(output io.Writer) {
	defaultLogger.logger.SetOutput(output)
}

// Output returns the writer of the default logger
func Output() io.Writer {
	return defaultLogger.logger.Out
}

// WithField adds a field to the default logger
func WithField(key string, value interface{}) *log.Entry {
	return defaultLogger.logger.WithField(key, value)
}

// WithFields adds multiple fields to the default logger
func WithFields(fields log.Fields) *log.Entry {
	return defaultLogger.logger.WithFields(fields)
}

// WithError adds an error field to the default logger
func WithError(err error) *log.Entry {
	return defaultLogger.logger.WithError(err)
}
