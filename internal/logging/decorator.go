package logging

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
)

// ContextExtractor pulls one slog attribute out of a request's
// context.Context at log time, so every line logged within a handler
// carries it without the handler threading it through by hand.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// RequestIDExtractor attaches the request id chi's middleware.RequestID
// stamps onto each inbound request's context, so task-submission and
// worker-registration log lines can be correlated back to the HTTP request
// that produced them.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return slog.String("request_id", id), true
}

// requestScopedHandler wraps a slog.Handler and runs extractors against the
// log call's context before delegating, injecting request-scoped attributes
// that the handler's static WithAttrs/WithGroup chain can't see.
type requestScopedHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

// newRequestScopedHandler wraps next with extractors, dropping any nil
// entries so a misconfigured caller can't panic the logging path.
func newRequestScopedHandler(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	clean := make([]ContextExtractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			clean = append(clean, ex)
		}
	}
	return &requestScopedHandler{next: next, extractors: clean}
}

func (h *requestScopedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *requestScopedHandler) Handle(ctx context.Context, rec slog.Record) error {
	if len(h.extractors) == 0 {
		return h.next.Handle(ctx, rec)
	}

	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *requestScopedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &requestScopedHandler{
		next:       h.next.WithAttrs(attrs),
		extractors: h.extractors,
	}
}

func (h *requestScopedHandler) WithGroup(name string) slog.Handler {
	return &requestScopedHandler{
		next:       h.next.WithGroup(name),
		extractors: h.extractors,
	}
}
