// Package dispatch composes the broker coordinator and the relational
// stores into the five end-to-end protocols the HTTP surface drives:
// submit task, register worker, unregister worker, update status, and
// submit result. It is the only package that enforces cross-component
// invariants — no other package knows about more than one of C2-C5.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fasttq/galactus/internal/broker"
	"github.com/fasttq/galactus/internal/model"
	"github.com/fasttq/galactus/internal/store"
)

// TaskKindStore is the subset of the TaskKind store the orchestrator needs.
type TaskKindStore interface {
	GetOrCreate(ctx context.Context, name string) (model.TaskKind, error)
	ListAll(ctx context.Context) ([]model.TaskKind, error)
}

// WorkerStore is the subset of the Worker store the orchestrator needs.
type WorkerStore interface {
	Register(ctx context.Context, id uuid.UUID, name string, kinds []model.TaskKind) (model.Worker, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Worker, error)
	ListAll(ctx context.Context) ([]model.Worker, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	RecordHeartbeat(ctx context.Context, id uuid.UUID) error
	LatestHeartbeat(ctx context.Context, id uuid.UUID) (model.Time, error)
}

// TaskInstanceStore is the subset of the TaskInstance store the
// orchestrator needs.
type TaskInstanceStore interface {
	Create(ctx context.Context, kind model.TaskKind, inputData any) (model.TaskInstance, error)
	Get(ctx context.Context, id uuid.UUID, includeResult bool) (model.TaskInstance, error)
	AssignToWorker(ctx context.Context, taskID, workerID uuid.UUID) error
	UpdateStatus(ctx context.Context, taskID uuid.UUID, status model.Status) error
	UploadResult(ctx context.Context, taskID, workerID uuid.UUID, output any) (model.TaskResult, error)
	UploadError(ctx context.Context, taskID, workerID uuid.UUID, errData any) (model.TaskResult, error)
}

// Coordinator is the subset of the broker coordinator the orchestrator
// needs.
type Coordinator interface {
	RegisterWorker(ctx context.Context, w model.Worker) error
	RemoveWorker(ctx context.Context, workerID uuid.UUID) error
	Publish(ctx context.Context, task model.TaskInstance) (uuid.UUID, error)
	Workers() []model.Worker
}

// Orchestrator is the Dispatch Orchestrator (C6): the glue that enforces
// the submit/register/unregister/result protocols by composing the broker
// coordinator and the three stores.
type Orchestrator struct {
	kinds   TaskKindStore
	workers WorkerStore
	tasks   TaskInstanceStore
	broker  Coordinator
}

// New creates an Orchestrator over its four collaborators.
func New(kinds TaskKindStore, workers WorkerStore, tasks TaskInstanceStore, coord Coordinator) *Orchestrator {
	return &Orchestrator{kinds: kinds, workers: workers, tasks: tasks, broker: coord}
}

// SubmitTask runs the submit protocol: get-or-create the kind, create the
// task Pending, select and publish to a worker, then assign it Queued.
//
// If selecting/publishing fails, the task row is left Pending with no
// assignee; the orchestrator does not delete it (acknowledged non-goal,
// see DESIGN.md). If the subsequent assign fails after a successful
// publish, the broker has already accepted the message and the DB update
// is lost — the same acknowledged at-least-once exposure.
func (o *Orchestrator) SubmitTask(ctx context.Context, taskKindName string, inputData any) (model.TaskInstance, error) {
	kind, err := o.kinds.GetOrCreate(ctx, taskKindName)
	if err != nil {
		return model.TaskInstance{}, newError(KindStorageFailed, fmt.Errorf("dispatch: get-or-create task kind %q: %w", taskKindName, err))
	}

	task, err := o.tasks.Create(ctx, kind, inputData)
	if err != nil {
		return model.TaskInstance{}, newError(KindStorageFailed, fmt.Errorf("dispatch: create task: %w", err))
	}

	workerID, err := o.broker.Publish(ctx, task)
	if err != nil {
		if errors.Is(err, broker.ErrNoAvailableWorker) {
			return model.TaskInstance{}, newError(KindNoAvailableWorker, err)
		}
		return model.TaskInstance{}, newError(KindBrokerUnavailable, fmt.Errorf("dispatch: publish task %s: %w", task.ID, err))
	}

	if err := o.tasks.AssignToWorker(ctx, task.ID, workerID); err != nil {
		return model.TaskInstance{}, newError(KindStorageFailed, fmt.Errorf("dispatch: assign task %s to worker %s: %w", task.ID, workerID, err))
	}

	task.AssignedTo = &workerID
	task.Status = model.StatusQueued
	return task, nil
}

// GetTask reads a task, optionally with its latest result attached.
func (o *Orchestrator) GetTask(ctx context.Context, id uuid.UUID, includeResult bool) (model.TaskInstance, error) {
	task, err := o.tasks.Get(ctx, id, includeResult)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.TaskInstance{}, newError(KindNotFound, err)
		}
		return model.TaskInstance{}, newError(KindStorageFailed, fmt.Errorf("dispatch: get task %s: %w", id, err))
	}
	return task, nil
}

// UpdateTaskStatus validates the status string, loads the task (404 if
// missing), then writes the new status without validating the transition
// itself — see model.Status and DESIGN.md for the open question this
// resolves.
func (o *Orchestrator) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, statusStr string) error {
	status, err := model.ParseStatus(statusStr)
	if err != nil {
		return newError(KindValidationFailed, err)
	}

	if _, err := o.tasks.Get(ctx, taskID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindNotFound, err)
		}
		return newError(KindStorageFailed, fmt.Errorf("dispatch: load task %s: %w", taskID, err))
	}

	if err := o.tasks.UpdateStatus(ctx, taskID, status); err != nil {
		return newError(KindStorageFailed, fmt.Errorf("dispatch: update status of task %s: %w", taskID, err))
	}
	return nil
}

// SubmitTaskResult loads the task (404 if missing) and, based on isError,
// routes to upload_result or upload_error, crediting task.AssignedTo as
// the reporting worker.
func (o *Orchestrator) SubmitTaskResult(ctx context.Context, taskID uuid.UUID, data any, isError bool) (model.TaskResult, error) {
	task, err := o.tasks.Get(ctx, taskID, false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.TaskResult{}, newError(KindNotFound, err)
		}
		return model.TaskResult{}, newError(KindStorageFailed, fmt.Errorf("dispatch: load task %s: %w", taskID, err))
	}

	var workerID uuid.UUID
	if task.AssignedTo != nil {
		workerID = *task.AssignedTo
	}

	var result model.TaskResult
	if isError {
		result, err = o.tasks.UploadError(ctx, taskID, workerID, data)
	} else {
		result, err = o.tasks.UploadResult(ctx, taskID, workerID, data)
	}
	if err != nil {
		return model.TaskResult{}, newError(KindStorageFailed, fmt.Errorf("dispatch: upload outcome for task %s: %w", taskID, err))
	}
	return result, nil
}

// RegisterWorker runs the register protocol: resolve each named kind,
// generate a worker id, persist the worker, then declare its queue and add
// it to the broker registry.
func (o *Orchestrator) RegisterWorker(ctx context.Context, name string, taskKindNames []string) (model.Worker, error) {
	if len(taskKindNames) == 0 {
		return model.Worker{}, newError(KindValidationFailed, errors.New("dispatch: worker must register at least one task kind"))
	}

	kinds := make([]model.TaskKind, 0, len(taskKindNames))
	for _, name := range taskKindNames {
		kind, err := o.kinds.GetOrCreate(ctx, name)
		if err != nil {
			return model.Worker{}, newError(KindStorageFailed, fmt.Errorf("dispatch: get-or-create task kind %q: %w", name, err))
		}
		kinds = append(kinds, kind)
	}

	id := uuid.New()
	worker, err := o.workers.Register(ctx, id, name, kinds)
	if err != nil {
		return model.Worker{}, newError(KindStorageFailed, fmt.Errorf("dispatch: register worker %s: %w", id, err))
	}

	if err := o.broker.RegisterWorker(ctx, worker); err != nil {
		return model.Worker{}, newError(KindBrokerUnavailable, fmt.Errorf("dispatch: declare queue for worker %s: %w", id, err))
	}

	return worker, nil
}

// UnregisterWorker runs the unregister protocol: mark the worker inactive
// (404 if unknown), then drop it from the broker registry and delete its
// queue.
func (o *Orchestrator) UnregisterWorker(ctx context.Context, id uuid.UUID) error {
	if err := o.workers.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindNotFound, err)
		}
		return newError(KindStorageFailed, fmt.Errorf("dispatch: deactivate worker %s: %w", id, err))
	}

	if err := o.broker.RemoveWorker(ctx, id); err != nil {
		return newError(KindBrokerUnavailable, fmt.Errorf("dispatch: remove worker %s from broker registry: %w", id, err))
	}
	return nil
}

// RecordHeartbeat appends a heartbeat row for a registered worker.
func (o *Orchestrator) RecordHeartbeat(ctx context.Context, id uuid.UUID) error {
	if err := o.workers.RecordHeartbeat(ctx, id); err != nil {
		return newError(KindStorageFailed, fmt.Errorf("dispatch: record heartbeat for worker %s: %w", id, err))
	}
	return nil
}

// GetWorker reads one worker by id.
func (o *Orchestrator) GetWorker(ctx context.Context, id uuid.UUID) (model.Worker, error) {
	worker, err := o.workers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Worker{}, newError(KindNotFound, err)
		}
		return model.Worker{}, newError(KindStorageFailed, fmt.Errorf("dispatch: get worker %s: %w", id, err))
	}
	return worker, nil
}

// ListWorkers reads every known worker.
func (o *Orchestrator) ListWorkers(ctx context.Context) ([]model.Worker, error) {
	workers, err := o.workers.ListAll(ctx)
	if err != nil {
		return nil, newError(KindStorageFailed, fmt.Errorf("dispatch: list workers: %w", err))
	}
	return workers, nil
}

// ListTaskKinds reads every known task kind.
func (o *Orchestrator) ListTaskKinds(ctx context.Context) ([]model.TaskKind, error) {
	kinds, err := o.kinds.ListAll(ctx)
	if err != nil {
		return nil, newError(KindStorageFailed, fmt.Errorf("dispatch: list task kinds: %w", err))
	}
	return kinds, nil
}

// RebuildRegistry reloads every active worker from the database and
// re-declares its queue in the broker coordinator. It is an extension over
// the minimal core: without it, a restarted process targets no worker
// until each one re-registers (see DESIGN.md open question on startup
// rebuild).
func (o *Orchestrator) RebuildRegistry(ctx context.Context) error {
	workers, err := o.workers.ListAll(ctx)
	if err != nil {
		return newError(KindStorageFailed, fmt.Errorf("dispatch: rebuild registry: list workers: %w", err))
	}

	for _, w := range workers {
		if !w.Active {
			continue
		}
		if err := o.broker.RegisterWorker(ctx, w); err != nil {
			return newError(KindBrokerUnavailable, fmt.Errorf("dispatch: rebuild registry: declare queue for worker %s: %w", w.ID, err))
		}
	}
	return nil
}
