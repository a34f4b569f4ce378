// Package logging builds galactus's slog.Logger: JSON output, with chi's
// per-request id (RequestIDExtractor) stamped onto every log line a request
// handler emits.
package logging
