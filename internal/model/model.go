// Package model defines the core data types shared by the store, broker,
// and dispatch packages: task kinds, workers, task instances, and results.
package model

import "github.com/google/uuid"

// TaskKind is a named category shared by tasks and workers. Membership in
// the same kind, by name, is the sole eligibility predicate for dispatch.
type TaskKind struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Worker is an external process that subscribes to a per-id queue and
// reports progress via the HTTP surface.
type Worker struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	RegisteredAt Time       `json:"registered_at"`
	TaskKinds    []TaskKind `json:"task_kinds"`
	Active       bool       `json:"active"`
}

// CanHandle reports whether the worker is eligible to run a task of the
// given kind. Equality is by kind name, not id, deliberately: a worker
// registered with a TaskKind whose name matches is eligible even if the
// TaskKind ids differ.
func (w Worker) CanHandle(kindName string) bool {
	for _, k := range w.TaskKinds {
		if k.Name == kindName {
			return true
		}
	}
	return false
}

// TaskResult is an immutable record of one attempted completion of a task,
// tagged as success (OutputData) or failure (ErrorData). Exactly one of the
// two is set.
type TaskResult struct {
	TaskID     uuid.UUID `json:"task_id"`
	WorkerID   uuid.UUID `json:"worker_id"`
	OutputData any       `json:"output_data,omitempty"`
	ErrorData  any       `json:"error_data,omitempty"`
	CreatedAt  Time      `json:"created_at"`
}

// TaskInstance is a unit of deferred work identified by a UUID, tagged with
// a task kind, and bearing arbitrary JSON input.
type TaskInstance struct {
	ID         uuid.UUID   `json:"id"`
	TaskKind   TaskKind    `json:"task_kind"`
	InputData  any         `json:"input_data,omitempty"`
	Status     Status      `json:"status"`
	CreatedAt  Time        `json:"created_at"`
	AssignedTo *uuid.UUID  `json:"assigned_to,omitempty"`
	Result     *TaskResult `json:"result,omitempty"`
}
