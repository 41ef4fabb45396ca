package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Level  string
	Format string // "console", "text", "json", "zerolog"
	Output io.Writer
}

var (
	once sync.Once
	lg   *slog.Logger
)

func Init(cfg Config) {
	once.Do(func() {
		if cfg.Output == nil {
			cfg.Output = os.Stdout
		}
		lg = slog.New(newHandler(cfg))
		slog.SetDefault(lg)
	})
}

func newHandler(cfg Config) slog.Handler {
	level := parseLevel(cfg.Level)
	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{Level: level})
	case "text":
		return slog.NewTextHandler(cfg.Output, &slog.HandlerOptions{Level: level})
	case "zerolog":
		return newZerologHandler(cfg.Output, level)
	default:
		return newConsoleHandler(cfg.Output, level)
	}
}

// ValidFormat reports whether format names a known handler. The empty
// string selects the console handler.
func ValidFormat(format string) bool {
	switch format {
	case "", "console", "text", "json", "zerolog":
		return true
	}
	return false
}

func L() *slog.Logger {
	if lg == nil {
		Init(Config{Level: "debug", Format: "console"})
	}
	return lg
}

// parseLevel accepts slog level names in any case ("warn", "ERROR",
// "debug-2") and "warning". Anything else is info.
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type ctxKey struct{}

// WithAttrs returns a context carrying args, given as slog key/value pairs
// or slog.Attr values. Loggers taken with FromContext add them to every
// record, so a connection can be tagged once and every layer below logs
// with the tag.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	attrs := append(slices.Clip(prev), slog.Group("", args...).Value.Group()...)
	return context.WithValue(ctx, ctxKey{}, attrs)
}

// FromContext returns the default logger with the attributes of ctx.
func FromContext(ctx context.Context) *slog.Logger {
	attrs, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	if len(attrs) == 0 {
		return slog.Default()
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return slog.Default().With(args...)
}

// Packet groups the attributes naming one packet on the wire.
func Packet(state, dir fmt.Stringer, id int32) slog.Attr {
	return slog.Group("packet",
		slog.String("state", state.String()),
		slog.String("direction", dir.String()),
		slog.String("id", fmt.Sprintf("0x%02x", id)),
	)
}

// consoleHandler outputs human-friendly log lines:
//
//	12:00:00 INFO  Proxying connection  client=127.0.0.1:50712 packet.state=Login
type consoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	// pre is the formatted text of attrs added with WithAttrs.
	pre   []byte
	group string
}

func newConsoleHandler(w io.Writer, level slog.Level) *consoleHandler {
	return &consoleHandler{mu: new(sync.Mutex), w: w, level: level}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(r.Time.Format(time.TimeOnly))
	buf.WriteByte(' ')
	buf.WriteString(levelTag(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	buf.Write(h.pre)
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(formatAttr(h.group, a))
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.pre = slices.Clip(h.pre)
	for _, a := range attrs {
		out.pre = append(out.pre, formatAttr(h.group, a)...)
	}
	return &out
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.group = joinKey(h.group, name)
	return &out
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN "
	case l >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

// formatAttr renders a as "  key=value". Groups are flattened into dotted
// keys and values with spaces are quoted.
func formatAttr(group string, a slog.Attr) string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return ""
	}
	if a.Value.Kind() == slog.KindGroup {
		prefix := group
		if a.Key != "" {
			prefix = joinKey(group, a.Key)
		}
		var sb strings.Builder
		for _, ga := range a.Value.Group() {
			sb.WriteString(formatAttr(prefix, ga))
		}
		return sb.String()
	}
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		v = strconv.Quote(v)
	}
	return "  " + joinKey(group, a.Key) + "=" + v
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}
