// Package httpapi wires chi routes for tasks, workers, task kinds, and
// health, mapping JSON request/response bodies onto the dispatch
// orchestrator. Routing and middleware use chi directly; there is no
// bespoke Context/Handler abstraction, since this surface is a pure JSON
// API with no templated rendering, sessions, or i18n to justify one.
package httpapi

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// errorBody is the JSON shape of an error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeJSON reads and decodes a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
