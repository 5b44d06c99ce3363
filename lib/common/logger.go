package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --------------------------------------------------------------------------
// Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// levelLabels are the fixed width labels written in front of every message
var levelLabels = map[logger.LogLevel]string{
	logger.CRITICAL: "CRIT ",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN ",
	logger.INFO:     "INFO ",
	logger.DEBUG:    "DEBUG",
}

// lineWriter serializes whole lines onto one output shared by many loggers
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) writeLine(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = io.WriteString(w.out, line)
}

// sKVLogger writes "<time> <LEVEL> <name>: <message>" lines.
// The level may be changed while other goroutines log.
type sKVLogger struct {
	name  string
	level atomic.Int32
	out   *lineWriter
	now   func() time.Time
}

// NewLogger creates a logger named name writing to w at INFO level.
// Loggers sharing w should be created by the same factory (see NewLoggerFactory).
func NewLogger(name string, w io.Writer) logger.ILogger {
	return newLogger(name, &lineWriter{out: w})
}

func newLogger(name string, out *lineWriter) *sKVLogger {
	l := &sKVLogger{name: name, out: out, now: time.Now}
	l.level.Store(int32(logger.INFO))
	return l
}

func (l *sKVLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *sKVLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *sKVLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *sKVLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *sKVLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf always panics; the message is logged first unless the level is below CRITICAL
func (l *sKVLogger) Panicf(format string, args ...interface{}) {
	l.logf(logger.CRITICAL, format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (l *sKVLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *sKVLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.out.writeLine(fmt.Sprintf("%s %s %s: %s\n",
		l.now().Format("2006/01/02 15:04:05.000"), levelLabels[level], l.name, fmt.Sprintf(format, args...)))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// NewLoggerFactory returns a dragonboat logger factory whose loggers all write to w
func NewLoggerFactory(w io.Writer) logger.Factory {
	out := &lineWriter{out: w}
	return func(pkgName string) logger.ILogger {
		return newLogger(pkgName, out)
	}
}

// CreateLogger is the default factory. It writes to stderr, so command output
// on stdout stays machine readable.
var CreateLogger = NewLoggerFactory(os.Stderr)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames are all loggers used by the engine and the cli
var loggerNames = []string{"birch", "janitor", "segment", "invariant", "cmd"}

// InitLoggers installs the default logger factory and sets the level of every known logger
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
