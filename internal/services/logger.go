package services

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the logging contract shared by every chatsync component.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel maps LOG_LEVEL values to a LogLevel, defaulting to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ProductionLogger writes leveled lines as JSON or as readable text.
type ProductionLogger struct {
	mu         sync.Mutex
	out        io.Writer
	level      LogLevel
	service    string
	structured bool
	now        func() time.Time
}

// NewProductionLogger creates a JSON logger on stdout at INFO.
func NewProductionLogger(service string) *ProductionLogger {
	return NewProductionLoggerTo(service, os.Stdout)
}

// NewProductionLoggerTo creates a JSON logger on w at INFO. The chat client
// points this at stderr or a file so log lines do not interleave with the UI.
func NewProductionLoggerTo(service string, w io.Writer) *ProductionLogger {
	return &ProductionLogger{
		out:        w,
		level:      LogLevelInfo,
		service:    service,
		structured: true,
		now:        time.Now,
	}
}

// SetLevel updates the logging level
func (p *ProductionLogger) SetLevel(level LogLevel) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

// SetStructured enables/disables structured JSON logging
func (p *ProductionLogger) SetStructured(structured bool) {
	p.mu.Lock()
	p.structured = structured
	p.mu.Unlock()
}

func (p *ProductionLogger) Info(msg string, keysAndValues ...interface{}) {
	p.log(LogLevelInfo, msg, keysAndValues)
}

func (p *ProductionLogger) Error(msg string, keysAndValues ...interface{}) {
	p.log(LogLevelError, msg, keysAndValues)
}

func (p *ProductionLogger) Debug(msg string, keysAndValues ...interface{}) {
	p.log(LogLevelDebug, msg, keysAndValues)
}

func (p *ProductionLogger) Warn(msg string, keysAndValues ...interface{}) {
	p.log(LogLevelWarn, msg, keysAndValues)
}

func (p *ProductionLogger) log(level LogLevel, msg string, kv []interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if level < p.level {
		return
	}
	timestamp := p.now().UTC().Format(time.RFC3339)

	if p.structured {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level.String(),
			"service":   p.service,
			"message":   msg,
		}
		if fields := pairs(kv); len(fields) > 0 {
			entry["fields"] = fields
		}
		line, err := json.Marshal(entry)
		if err != nil {
			// error values and channels can't always be marshalled
			line, _ = json.Marshal(map[string]string{"level": level.String(), "service": p.service, "message": msg})
		}
		fmt.Fprintln(p.out, string(line))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s [%s] %s", timestamp, level.String(), p.service, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	fmt.Fprintln(p.out, b.String())
}

// pairs folds a key/value list into a map. Errors are stringified so they
// survive JSON encoding.
func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, isErr := kv[i+1].(error); isErr && err != nil {
			fields[key] = err.Error()
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

// NoOpLogger is a logger that does nothing (for testing)
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}

// NewLogger builds a logger on stdout from GO_ENV and LOG_LEVEL.
func NewLogger(service string) Logger {
	return NewLoggerTo(service, os.Stdout)
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(service string, w io.Writer) Logger {
	env := os.Getenv("GO_ENV")
	if env == "test" {
		return &NoOpLogger{}
	}

	logger := NewProductionLoggerTo(service, w)
	logger.SetLevel(ParseLogLevel(os.Getenv("LOG_LEVEL")))
	// JSON in production, human-readable elsewhere
	logger.SetStructured(env == "production")
	return logger
}
