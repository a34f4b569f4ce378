package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fasttq/galactus/internal/dispatch"
)

// WorkerHandler serves /workers.
type WorkerHandler struct {
	orch *dispatch.Orchestrator
}

// NewWorkerHandler creates a WorkerHandler.
func NewWorkerHandler(orch *dispatch.Orchestrator) *WorkerHandler {
	return &WorkerHandler{orch: orch}
}

// Routes registers the worker routes on r.
func (h *WorkerHandler) Routes(r chi.Router) {
	r.Post("/workers", h.register)
	r.Get("/workers", h.list)
	r.Get("/workers/{id}", h.get)
	r.Delete("/workers/{id}", h.unregister)
	r.Put("/workers/{id}/heartbeat", h.heartbeat)
}

type registerWorkerRequest struct {
	Name      string   `json:"name"`
	TaskKinds []string `json:"task_kinds"`
}

func (h *WorkerHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.TaskKinds) == 0 {
		writeError(w, http.StatusBadRequest, errMissingTaskKindNames)
		return
	}

	worker, err := h.orch.RegisterWorker(r.Context(), req.Name, req.TaskKinds)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

func (h *WorkerHandler) list(w http.ResponseWriter, r *http.Request) {
	workers, err := h.orch.ListWorkers(r.Context())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

func (h *WorkerHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	worker, err := h.orch.GetWorker(r.Context(), id)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func (h *WorkerHandler) unregister(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.orch.UnregisterWorker(r.Context(), id); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WorkerHandler) heartbeat(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.orch.RecordHeartbeat(r.Context(), id); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
