package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

const (
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

// New logs to stdout. JSON in Kubernetes, prod and dev, text elsewhere.
func New(env string) *slog.Logger {
	return NewWithWriter(os.Stdout, env)
}

func NewWithWriter(w io.Writer, env string) *slog.Logger {
	if structured(env) {
		return slog.New(&contextHandler{
			next: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: true}),
		})
	}
	return slog.New(&contextHandler{
		next:        slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
		colorErrors: true,
	})
}

func structured(env string) bool {
	if _, inK8s := os.LookupEnv("KUBERNETES_SERVICE_HOST"); inK8s {
		return true
	}
	return env == "prod" || env == "dev"
}

func NewWithServiceContext(serviceName, version, env string) *slog.Logger {
	return New(env).With(
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("environment", env),
	)
}

// Discard drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// contextHandler stamps the OTel trace_id/span_id found in ctx onto each
// record and, for terminals, paints ERROR messages red.
type contextHandler struct {
	next        slog.Handler
	colorErrors bool
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.colorErrors && r.Level >= slog.LevelError {
		painted := slog.NewRecord(r.Time, r.Level, red+r.Message+reset, r.PC)
		r.Attrs(func(a slog.Attr) bool {
			painted.AddAttrs(a)
			return true
		})
		r = painted
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), colorErrors: h.colorErrors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), colorErrors: h.colorErrors}
}
