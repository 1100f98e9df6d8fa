// Package logging renders bridge diagnostics through log/slog.
//
// Every record goes to a platform sink (the host log callback, logcat, or
// stderr). When a file path is configured the same line is appended to
// that file with a "YYYY-MM-DD HH:MM:SS" prefix.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// TimestampLayout prefixes every line written to a log file.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultTag is the platform log tag.
const DefaultTag = "NativeRunner"

// Level mirrors the host ABI log levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// FromSlog maps a slog level onto the host levels.
func FromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarning
	default:
		return LevelError
	}
}

// Sink receives one rendered message.
type Sink func(level Level, tag, message string)

// Stderr is the fallback sink when no host logger is available.
func Stderr(level Level, tag, message string) {
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", level, tag, message)
}

// Discard drops everything.
func Discard(Level, string, string) {}

// Options configures New.
type Options struct {
	Tag      string
	Sink     Sink
	FilePath string
	Level    slog.Level
	// Now is the clock used for file timestamps.
	Now func() time.Time
}

// New builds a logger. The returned func closes the log file, if any.
func New(opts Options) (*slog.Logger, func() error) {
	if opts.Tag == "" {
		opts.Tag = DefaultTag
	}
	if opts.Sink == nil {
		opts.Sink = Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	out := &output{
		tag:  opts.Tag,
		sink: opts.Sink,
		now:  opts.Now,
	}

	closer := func() error { return nil }
	if opts.FilePath != "" {
		f, err := openAppend(opts.FilePath)
		if err != nil {
			opts.Sink(LevelWarning, opts.Tag, fmt.Sprintf("log file %s unavailable: %v", opts.FilePath, err))
		} else {
			out.file = f
			closer = f.Close
		}
	}

	return slog.New(&Handler{out: out, level: opts.Level}), closer
}

// output is shared by a handler and every handler derived from it.
type output struct {
	mu   sync.Mutex
	tag  string
	sink Sink
	now  func() time.Time
	file *appender
}

func (o *output) emit(level Level, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sink(level, o.tag, msg)
	if o.file != nil {
		line := o.now().Format(TimestampLayout) + " " + msg + "\n"
		if err := o.file.Append(line); err != nil {
			o.sink(LevelWarning, o.tag, fmt.Sprintf("log file write failed: %v", err))
		}
	}
}

// Handler is a slog.Handler producing "message key=value ..." lines.
type Handler struct {
	out    *output
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, prefix, a)
		return true
	})

	h.out.emit(FromSlog(r.Level), b.String())
	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	v := a.Value.String()
	if strings.ContainsAny(v, " \t\"=") {
		fmt.Fprintf(b, "%q", v)
	} else {
		b.WriteString(v)
	}
}
