package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fasttq/galactus/internal/model"
)

// SubmissionExchange is the single direct exchange all task messages route
// through, bound per-worker by routing key = worker id.
const SubmissionExchange = "task_submission"

// Coordinator owns the in-memory worker registry and the round-robin
// dispatch cursor. It is the only component that mutates broker queue
// topology for workers and the only place that picks which worker a task
// goes to.
//
// The registry and cursor are mutated under a single exclusive lock held
// across the full select-and-publish critical section: this keeps the
// cursor's advance and the routing key actually published in lockstep, and
// gives a total order on dispatches within one process. Splitting "pick
// under lock, publish outside" would break that invariant.
type Coordinator struct {
	driver Driver

	mu      sync.Mutex
	workers []model.Worker
	cursor  int
}

// NewCoordinator creates a Coordinator over driver. It declares the shared
// submission exchange eagerly so RegisterWorker never has to.
func NewCoordinator(ctx context.Context, driver Driver) (*Coordinator, error) {
	if err := driver.RegisterExchange(ctx, SubmissionExchange); err != nil {
		return nil, err
	}
	return &Coordinator{driver: driver}, nil
}

// RegisterWorker declares the worker's queue (named by its id, bound under
// its own id as routing key) on the submission exchange, then adds it to
// the registry.
//
// Re-registration with the same id replaces the existing registry entry in
// place rather than appending a duplicate. The source's stated default is
// to append (skewing round-robin toward repeatedly re-registered workers
// with no way to undo it short of a restart); replacing in place is the
// documented resolution of that open question, see DESIGN.md.
func (c *Coordinator) RegisterWorker(ctx context.Context, w model.Worker) error {
	queue := w.ID.String()
	if err := c.driver.RegisterQueue(ctx, SubmissionExchange, queue, queue); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.workers {
		if existing.ID == w.ID {
			c.workers[i] = w
			return nil
		}
	}
	c.workers = append(c.workers, w)
	return nil
}

// RemoveWorker deletes the worker's queue and drops it from the registry.
// It fails with ErrWorkerNotRegistered if the worker is not currently
// registered.
func (c *Coordinator) RemoveWorker(ctx context.Context, workerID uuid.UUID) error {
	c.mu.Lock()
	idx := -1
	for i, w := range c.workers {
		if w.ID == workerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		c.mu.Unlock()
		return ErrWorkerNotRegistered
	}
	c.workers = append(c.workers[:idx], c.workers[idx+1:]...)
	c.mu.Unlock()

	return c.driver.DeleteQueue(ctx, workerID.String())
}

// Publish selects an eligible worker for task by capability-filtered
// round-robin and publishes the serialized input data to the submission
// exchange under the selected worker's id. It returns the selected
// worker's id.
//
// Selection and publish happen under the same lock. The cursor is taken
// modulo the current registry size and advances on every probe, including
// the probe that selected a worker whose publish then fails; on publish
// failure the registry itself is left unchanged, so the caller must not
// mark the task Queued.
func (c *Coordinator) Publish(ctx context.Context, task model.TaskInstance) (uuid.UUID, error) {
	payload, err := json.Marshal(task.InputData)
	if err != nil {
		return uuid.Nil, fmt.Errorf("broker: failed to serialize task input: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.workers)
	if n == 0 {
		return uuid.Nil, ErrNoAvailableWorker
	}

	c.cursor %= n

	var selected *model.Worker
	for i := 0; i < n; i++ {
		w := c.workers[c.cursor]
		c.cursor = (c.cursor + 1) % n
		if w.CanHandle(task.TaskKind.Name) {
			selected = &w
			break
		}
	}
	if selected == nil {
		return uuid.Nil, ErrNoAvailableWorker
	}

	routingKey := selected.ID.String()
	if err := c.driver.Publish(ctx, SubmissionExchange, routingKey, payload, task.ID.String(), task.ID.String()); err != nil {
		return uuid.Nil, errors.Join(ErrPublishFailed, err)
	}

	return selected.ID, nil
}

// Workers returns a snapshot of the currently registered workers, for
// diagnostics. The returned slice is a copy; mutating it has no effect on
// the coordinator.
func (c *Coordinator) Workers() []model.Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Worker, len(c.workers))
	copy(out, c.workers)
	return out
}
