package httpapi

import (
	"errors"
	"net/http"

	"github.com/fasttq/galactus/internal/dispatch"
)

// statusForError maps an orchestrator error to an HTTP status code,
// following the error-kind table: NotFound->404, ValidationFailed->400,
// everything else (NoAvailableWorker, BrokerUnavailable, StorageFailed)
// ->500. NoAvailableWorker is a well-formed request the service cannot
// currently satisfy, surfaced as 500 by deliberate design choice rather
// than a client error.
func statusForError(err error) int {
	var derr *dispatch.Error
	if !errors.As(err, &derr) {
		return http.StatusInternalServerError
	}
	switch derr.Kind {
	case dispatch.KindNotFound:
		return http.StatusNotFound
	case dispatch.KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeOrchestratorError maps err to a status via statusForError and
// writes it as a JSON error body.
func writeOrchestratorError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}
