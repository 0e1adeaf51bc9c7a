// Package logging provides the leveled structured logger used across the
// Sleipnir core. It wraps the standard library log.Logger rather than
// pulling in a third-party logging framework.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a log severity. The zero value is DebugLevel. Loggers
// are built with New; the zero Logger has no output writer.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (lv Level) String() string {
	switch {
	case lv <= DebugLevel:
		return "DEBUG"
	case lv == InfoLevel:
		return "INFO"
	case lv == WarnLevel:
		return "WARN"
	default:
		return "ERROR"
	}
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Config holds logger construction options.
type Config struct {
	Level  string
	Output io.Writer
}

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is a leveled logger that supports structured key/value fields and
// component-scoped children. A child carries its ancestry as a slice of
// sticky Fields rather than as a rewritten line-prefix, so WithComponent and
// WithFields compose without re-wrapping the underlying writer at each
// level.
type Logger struct {
	threshold Level
	out       *log.Logger
	sticky    []Field
}

// New creates a root logger.
func New(cfg Config) *Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		threshold: parseLevel(cfg.Level),
		out:       log.New(w, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// WithComponent returns a child logger that tags every line it emits with
// component, alongside whatever fields each call site passes.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields(Field{Key: "component", Value: component})
}

// WithFields returns a child logger that merges extra into every call's
// fields, on top of any sticky fields already carried by l.
func (l *Logger) WithFields(extra ...Field) *Logger {
	sticky := make([]Field, 0, len(l.sticky)+len(extra))
	sticky = append(sticky, l.sticky...)
	sticky = append(sticky, extra...)
	return &Logger{threshold: l.threshold, out: l.out, sticky: sticky}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, fields) }

// emit is the single point every level method funnels through: one
// threshold check and one render, instead of each level method repeating
// its own guard-and-format pair.
func (l *Logger) emit(level Level, msg string, fields []Field) {
	if level < l.threshold {
		return
	}
	l.out.Print(render(level, msg, l.sticky, fields))
}

func render(level Level, msg string, sticky, fields []Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for _, f := range sticky {
		writeField(&b, f)
	}
	for _, f := range fields {
		writeField(&b, f)
	}
	return b.String()
}

// writeField renders a single field. The sentinel "component" key (set by
// WithComponent) renders as a bracketed tag to match the bracket-prefix
// convention log readers expect; every other field renders as key=value.
func writeField(b *strings.Builder, f Field) {
	if f.Key == "component" {
		fmt.Fprintf(b, " [%v]", f.Value)
		return
	}
	fmt.Fprintf(b, " %s=%v", f.Key, f.Value)
}

// Field constructors.

func String(key, val string) Field        { return Field{Key: key, Value: val} }
func Int(key string, val int) Field       { return Field{Key: key, Value: val} }
func Uint32(key string, val uint32) Field { return Field{Key: key, Value: val} }
func Uint8(key string, val uint8) Field   { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field     { return Field{Key: key, Value: val} }

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, val interface{}) Field { return Field{Key: key, Value: val} }
