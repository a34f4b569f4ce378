package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fasttq/galactus/internal/dispatch"
)

// TaskHandler serves /tasks and /task-kinds.
type TaskHandler struct {
	orch *dispatch.Orchestrator
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(orch *dispatch.Orchestrator) *TaskHandler {
	return &TaskHandler{orch: orch}
}

// Routes registers the task routes on r.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Post("/tasks", h.submit)
	r.Get("/tasks/{id}", h.get)
	r.Put("/tasks/{id}/status", h.updateStatus)
	r.Put("/tasks/{id}/result", h.submitResult)
	r.Get("/task-kinds", h.listKinds)
}

type submitTaskRequest struct {
	TaskKindName string `json:"task_kind_name"`
	InputData    any    `json:"input_data,omitempty"`
}

func (h *TaskHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.TaskKindName == "" {
		writeError(w, http.StatusBadRequest, errMissingTaskKindName)
		return
	}

	task, err := h.orch.SubmitTask(r.Context(), req.TaskKindName, req.InputData)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	task, err := h.orch.GetTask(r.Context(), id, true)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var status string
	if err := decodeJSON(r, &status); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.orch.UpdateTaskStatus(r.Context(), id, status); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type submitResultRequest struct {
	Data    any  `json:"data"`
	IsError bool `json:"is_error"`
}

func (h *TaskHandler) submitResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req submitResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := h.orch.SubmitTaskResult(r.Context(), id, req.Data, req.IsError); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *TaskHandler) listKinds(w http.ResponseWriter, r *http.Request) {
	kinds, err := h.orch.ListTaskKinds(r.Context())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kinds)
}
