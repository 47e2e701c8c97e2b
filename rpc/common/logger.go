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
// Output
// --------------------------------------------------------------------------

// timeLayout is the timestamp of every log line, millisecond precision helps
// to follow reconnects and flushes
const timeLayout = "2006-01-02 15:04:05.000"

var (
	outputMu sync.Mutex
	output   io.Writer = os.Stderr // stdout carries message payloads in the CLI
)

// SetLogOutput redirects all dMQ loggers to w
func SetLogOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// write emits a single line, the lock keeps lines of concurrent sockets apart
func write(line string) {
	outputMu.Lock()
	_, _ = io.WriteString(output, line)
	outputMu.Unlock()
}

// --------------------------------------------------------------------------
// Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// dMQLogger is safe for concurrent use, the level may change while sockets log
type dMQLogger struct {
	name  string
	level atomic.Int32
}

func (l *dMQLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *dMQLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *dMQLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.logf("DEBUG", format, args...)
	}
}

func (l *dMQLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.logf("INFO", format, args...)
	}
}

func (l *dMQLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.logf("WARN", format, args...)
	}
}

func (l *dMQLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.logf("ERROR", format, args...)
	}
}

// Panicf logs regardless of the level and panics with the message
func (l *dMQLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logf("PANIC", "%s", msg)
	panic(msg)
}

func (l *dMQLogger) logf(level string, format string, args ...interface{}) {
	var b strings.Builder
	b.WriteString(time.Now().Format(timeLayout))
	fmt.Fprintf(&b, " %-5s [%s] ", level, l.name)
	fmt.Fprintf(&b, format, args...)
	b.WriteByte('\n')
	write(b.String())
}

// CreateLogger is the logger.Factory installed by InitLoggers
func CreateLogger(pkgName string) logger.ILogger {
	l := &dMQLogger{name: pkgName}
	l.SetLevel(logger.INFO)
	return l
}

// --------------------------------------------------------------------------
// Levels
// --------------------------------------------------------------------------

// LoggerNames lists all loggers used by dMQ packages
var LoggerNames = []string{"socket", "transport", "queue", "pubsub", "cli"}

var levels = map[string]logger.LogLevel{
	"debug":   logger.DEBUG,
	"info":    logger.INFO,
	"warn":    logger.WARNING,
	"warning": logger.WARNING,
	"error":   logger.ERROR,
}

// ParseLogLevel converts a level name (case-insensitive) to a logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	if lvl, ok := levels[strings.ToLower(level)]; ok {
		return lvl, nil
	}
	return logger.INFO, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
}

var factoryOnce sync.Once

// InitLoggers installs the dMQ logger factory (once per process) and sets the
// level of all dMQ loggers
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
