// Package observability carries the logging abstraction used across the
// repair pipeline. Recoverable per-glyph conditions are logged and never
// escalate; the abstraction keeps callers free of any concrete sink.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type runeField struct {
	key string
	val rune
}

func (f runeField) Key() string        { return f.key }
func (f runeField) Value() interface{} { return fmt.Sprintf("U+%04X", f.val) }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field    { return stringField{key, value} }
func Int(key string, value int) Field   { return intField{key, value} }
func Rune(key string, value rune) Field { return runeField{key, value} }
func Error(key string, err error) Field { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// Level restricts writer logger output.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// NewWriterLogger returns a Logger emitting one "LEVEL msg key=value ..."
// line per call to w. Safe for concurrent use; worker goroutines log through
// a single shared instance.
func NewWriterLogger(w io.Writer, min Level) Logger {
	return &writerLogger{w: w, min: min, mu: &sync.Mutex{}}
}

type writerLogger struct {
	w     io.Writer
	min   Level
	mu    *sync.Mutex
	bound []Field
}

func (l *writerLogger) log(level Level, name, msg string, fields []Field) {
	if level < l.min {
		return
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range append(append([]Field(nil), l.bound...), fields...) {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	b.WriteByte('\n')
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, b.String())
}

func (l *writerLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, "DEBUG", msg, fields) }
func (l *writerLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, "INFO", msg, fields) }
func (l *writerLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, "WARN", msg, fields) }
func (l *writerLogger) Error(msg string, fields ...Field) { l.log(LevelError, "ERROR", msg, fields) }

func (l *writerLogger) With(fields ...Field) Logger {
	bound := append(append([]Field(nil), l.bound...), fields...)
	return &writerLogger{w: l.w, min: l.min, mu: l.mu, bound: bound}
}

// Counters accumulates run statistics. The orchestrator reports them once at
// the end of a run.
type Counters struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCounters() *Counters { return &Counters{counts: make(map[string]int)} }

func (c *Counters) Add(name string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name] += delta
}

func (c *Counters) Get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Fields renders all counters as sorted log fields.
func (c *Counters) Fields() []Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.counts))
	for n := range c.counts {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Field, 0, len(names))
	for _, n := range names {
		out = append(out, Int(n, c.counts[n]))
	}
	return out
}

// Standard counter names emitted by the repair pipeline.
const (
	MetricFontsScanned     = "fonts.scanned"
	MetricGlyphsScanned    = "glyphs.scanned"
	MetricGlyphsKept       = "glyphs.kept"
	MetricGlyphsRecognized = "glyphs.recognized"
	MetricGlyphsFallback   = "glyphs.fallback"
	MetricTablesPatched    = "tables.patched"
)
