package logging

import (
	"log/slog"
	"os"
)

// New creates galactus's JSON-formatted logger, stamping RequestIDExtractor
// plus any additional extractors onto every log line.
func New(level slog.Level, extractors ...ContextExtractor) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	all := append([]ContextExtractor{RequestIDExtractor}, extractors...)
	return slog.New(newRequestScopedHandler(h, all...))
}
