package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type options struct {
	level     slog.Level
	addSource bool
	extra     []slog.Handler
}

// Option configures the logger returned by New.
type Option func(*options)

// WithLevel sets the minimum level by name (debug, info, warn, error).
func WithLevel(level string) Option {
	return func(o *options) {
		switch strings.ToLower(level) {
		case "debug", "trace", "verbose", "all":
			o.level = slog.LevelDebug
		case "warn", "warning":
			o.level = slog.LevelWarn
		case "error", "fatal":
			o.level = slog.LevelError
		default:
			o.level = slog.LevelInfo
		}
	}
}

// WithSource adds source file/line attribution to records.
func WithSource() Option {
	return func(o *options) {
		o.addSource = true
	}
}

// WithHandler attaches an additional handler, e.g. a ChannelSink forwarding
// records to a chat channel.
func WithHandler(handler slog.Handler) Option {
	return func(o *options) {
		o.extra = append(o.extra, handler)
	}
}

// New creates a slog.Logger writing text records to stderr, optionally fanned
// out to extra handlers.
func New(opts ...Option) *slog.Logger {
	o := &options{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(o)
	}

	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     o.level,
		AddSource: o.addSource,
	})

	if len(o.extra) == 0 {
		return slog.New(base)
	}

	return slog.New(&fanoutHandler{handlers: append([]slog.Handler{base}, o.extra...)})
}

// fanoutHandler duplicates records to every attached handler.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error

	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}

	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}

	return &fanoutHandler{handlers: handlers}
}
