// Package logger writes structured log lines, one JSON object (or one
// key=value text line) per entry. Two process-wide loggers exist: the
// application logger and the database logger.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

func (lv Level) rank() int {
	switch lv {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	}
	return 1
}

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Entry is the JSON shape of one line
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     Level                  `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Stack     []string               `json:"stack,omitempty"`
}

type Config struct {
	Output   io.Writer
	MinLevel Level
	Format   Format
	// WithStack adds the caller stack to ERROR entries that carry an error
	WithStack bool
}

type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	format    Format
	withStack bool
}

// New fills unset fields with stdout, INFO and JSON
func New(cfg Config) *Logger {
	l := &Logger{
		output:    cfg.Output,
		minLevel:  cfg.MinLevel,
		format:    cfg.Format,
		withStack: cfg.WithStack,
	}
	if l.output == nil {
		l.output = os.Stdout
	}
	if l.minLevel == "" {
		l.minLevel = LevelInfo
	}
	if l.format == "" {
		l.format = FormatJSON
	}
	return l
}

func Default() *Logger {
	return New(Config{})
}

// Discard drops everything, for tests
func Discard() *Logger {
	return New(Config{Output: io.Discard, MinLevel: LevelError})
}

// NewWithLevel parses level and format names as found in the configuration.
// Debug level turns on stack capture.
func NewWithLevel(level, format string) *Logger {
	lv := Level(strings.ToUpper(level))
	switch lv {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		lv = LevelInfo
	}
	f := FormatJSON
	if strings.EqualFold(format, string(FormatText)) {
		f = FormatText
	}
	return New(Config{Output: os.Stdout, MinLevel: lv, Format: f, WithStack: lv == LevelDebug})
}

var registry struct {
	sync.RWMutex
	app, db *Logger
}

func lazy(slot **Logger) *Logger {
	registry.RLock()
	l := *slot
	registry.RUnlock()
	if l != nil {
		return l
	}

	registry.Lock()
	defer registry.Unlock()
	if *slot == nil {
		*slot = Default()
	}
	return *slot
}

// AppLogger returns the application logger, creating a default one on first use
func AppLogger() *Logger { return lazy(&registry.app) }

// DatabaseLogger returns the logger handed to gorm
func DatabaseLogger() *Logger { return lazy(&registry.db) }

func SetAppLogger(l *Logger) {
	registry.Lock()
	registry.app = l
	registry.Unlock()
}

func SetDatabaseLogger(l *Logger) {
	registry.Lock()
	registry.db = l
	registry.Unlock()
}

// InitializeLoggersWithFormat replaces both loggers, sharing one format
func InitializeLoggersWithFormat(appLevel, dbLevel, format string) {
	app, db := NewWithLevel(appLevel, format), NewWithLevel(dbLevel, format)
	registry.Lock()
	registry.app, registry.db = app, db
	registry.Unlock()
}

// WithFields returns a logger that adds fields to every entry
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	return &FieldLogger{logger: l, fields: fields}
}

func (l *Logger) Enabled(level Level) bool {
	return level.rank() >= l.minLevel.rank()
}

func (l *Logger) Debug(msg string) {
	l.emit(context.Background(), LevelDebug, msg, nil, nil)
}

func (l *Logger) Info(msg string) {
	l.emit(context.Background(), LevelInfo, msg, nil, nil)
}

func (l *Logger) Warn(msg string) {
	l.emit(context.Background(), LevelWarn, msg, nil, nil)
}

func (l *Logger) Error(msg string, err error) {
	l.emit(context.Background(), LevelError, msg, nil, err)
}

// The Context variants add the run and request ids found in ctx.

func (l *Logger) InfoContext(ctx context.Context, msg string) {
	l.emit(ctx, LevelInfo, msg, nil, nil)
}

func (l *Logger) WarnContext(ctx context.Context, msg string) {
	l.emit(ctx, LevelWarn, msg, nil, nil)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, err error) {
	l.emit(ctx, LevelError, msg, nil, err)
}

func (l *Logger) emit(ctx context.Context, level Level, msg string, fields map[string]interface{}, err error) {
	if !l.Enabled(level) {
		return
	}

	e := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Context:   withContextIDs(ctx, fields),
	}
	if err != nil {
		e.Error = err.Error()
		if l.withStack && level == LevelError {
			e.Stack = callers(4)
		}
	}

	line := e.text()
	if l.format != FormatText {
		data, _ := json.Marshal(e)
		line = string(data)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.output, line+"\n")
}

func withContextIDs(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	runID, requestID := ctx.Value(runIDKey), ctx.Value(requestIDKey)
	if runID == nil && requestID == nil {
		return fields
	}

	merged := make(map[string]interface{}, len(fields)+2)
	if runID != nil {
		merged["run_id"] = runID
	}
	if requestID != nil {
		merged["request_id"] = requestID
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// text renders "ts LEVEL message k=v ... error=..." with keys sorted
func (e Entry) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", e.Timestamp, e.Level, e.Message)

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Context[k])
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	for _, frame := range e.Stack {
		b.WriteString("\n\t" + frame)
	}
	return b.String()
}

func callers(skip int) []string {
	pcs := make([]uintptr, 32)
	pcs = pcs[:runtime.Callers(skip, pcs)]

	var stack []string
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Function))
		if !more {
			return stack
		}
	}
}

// FieldLogger is a Logger with preset fields
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) Debug(msg string) {
	fl.logger.emit(context.Background(), LevelDebug, msg, fl.fields, nil)
}

func (fl *FieldLogger) Info(msg string) {
	fl.logger.emit(context.Background(), LevelInfo, msg, fl.fields, nil)
}

func (fl *FieldLogger) Warn(msg string) {
	fl.logger.emit(context.Background(), LevelWarn, msg, fl.fields, nil)
}

func (fl *FieldLogger) Error(msg string, err error) {
	fl.logger.emit(context.Background(), LevelError, msg, fl.fields, err)
}

func (fl *FieldLogger) InfoContext(ctx context.Context, msg string) {
	fl.logger.emit(ctx, LevelInfo, msg, fl.fields, nil)
}

func (fl *FieldLogger) WarnContext(ctx context.Context, msg string) {
	fl.logger.emit(ctx, LevelWarn, msg, fl.fields, nil)
}

func (fl *FieldLogger) ErrorContext(ctx context.Context, msg string, err error) {
	fl.logger.emit(ctx, LevelError, msg, fl.fields, err)
}

type contextKey int

const (
	runIDKey contextKey = iota
	requestIDKey
)

// ContextWithRunID tags ctx with an import run id
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// ContextWithRequestID tags ctx with an API request id
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
