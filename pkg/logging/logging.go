package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level, defaulting to InfoLevel
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Logger is the structured logger used across the bot
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is a single key/value pair attached to a log entry
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Err attaches an error under the "error" key. A nil error is recorded as "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Config selects level, output format and destination
type Config struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer
	Caller bool
}

type entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// StructuredLogger writes leveled entries in text or JSON form
type StructuredLogger struct {
	level  Level
	format string
	out    io.Writer
	caller bool
	fields map[string]interface{}
	mu     *sync.Mutex
}

// New creates a StructuredLogger from cfg
func New(cfg Config) *StructuredLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	format := strings.ToLower(cfg.Format)
	if format != "json" {
		format = "text"
	}
	return &StructuredLogger{
		level:  ParseLevel(cfg.Level),
		format: format,
		out:    out,
		caller: cfg.Caller,
		fields: make(map[string]interface{}),
		mu:     &sync.Mutex{},
	}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	l := New(Config{Level: "fatal", Output: io.Discard})
	return l
}

func (l *StructuredLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }

func (l *StructuredLogger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields) }

func (l *StructuredLogger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields) }

func (l *StructuredLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// Fatal logs and exits the process
func (l *StructuredLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields)
	os.Exit(1)
}

// With returns a child logger that always carries fields
func (l *StructuredLogger) With(fields ...Field) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &StructuredLogger{
		level:  l.level,
		format: l.format,
		out:    l.out,
		caller: l.caller,
		fields: merged,
		mu:     l.mu,
	}
}

func (l *StructuredLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		e.Fields[k] = v
	}
	for _, f := range fields {
		e.Fields[f.Key] = f.Value
	}
	if l.caller {
		if _, file, line, ok := runtime.Caller(2); ok {
			e.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	var line string
	if l.format == "json" {
		data, err := json.Marshal(e)
		if err != nil {
			line = fmt.Sprintf("ERROR: failed to marshal log entry: %v\n", err)
		} else {
			line = string(data) + "\n"
		}
	} else {
		line = formatText(e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
}

var levelColors = map[string]*color.Color{
	"DEBUG": color.New(color.FgHiBlack),
	"INFO":  color.New(color.FgGreen),
	"WARN":  color.New(color.FgYellow),
	"ERROR": color.New(color.FgRed),
	"FATAL": color.New(color.FgRed, color.Bold),
}

func formatText(e entry) string {
	var b strings.Builder

	b.WriteString(e.Timestamp.Format("2006-01-02 15:04:05.000"))
	b.WriteString(" [")
	if c, ok := levelColors[e.Level]; ok {
		b.WriteString(c.Sprint(e.Level))
	} else {
		b.WriteString(e.Level)
	}
	b.WriteString("] ")
	b.WriteString(e.Message)

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Fields[k])
		}
		b.WriteString("}")
	}

	if e.Caller != "" {
		b.WriteString(" (")
		b.WriteString(e.Caller)
		b.WriteString(")")
	}

	b.WriteString("\n")
	return b.String()
}

var (
	adminCommand = color.New(color.FgMagenta)
	userCommand  = color.New(color.FgCyan)
)

// CommandLine renders one command invocation for the console: admin commands in magenta,
// everything else in cyan.
func CommandLine(author string, admin bool, content string) string {
	c := userCommand
	if admin {
		c = adminCommand
	}
	return c.Sprintf("%s: %s", author, content)
}

// StdLogAdapter forwards the standard library logger into a Logger
type StdLogAdapter struct {
	logger Logger
}

func NewStdLogAdapter(logger Logger) *StdLogAdapter {
	return &StdLogAdapter{logger: logger}
}

// Write implements io.Writer
func (a *StdLogAdapter) Write(p []byte) (int, error) {
	if msg := strings.TrimSpace(string(p)); msg != "" {
		a.logger.Info(msg)
	}
	return len(p), nil
}

// Install routes the standard log package through the adapter
func (a *StdLogAdapter) Install() {
	log.SetOutput(a)
	log.SetFlags(0)
}
