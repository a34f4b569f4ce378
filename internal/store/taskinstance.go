package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasttq/galactus/internal/db"
	"github.com/fasttq/galactus/internal/model"
)

// TaskInstanceStore persists tasks and their results (C5).
type TaskInstanceStore struct {
	reader *pgxpool.Pool
	writer *pgxpool.Pool
}

// NewTaskInstanceStore creates a TaskInstanceStore.
func NewTaskInstanceStore(reader, writer *pgxpool.Pool) *TaskInstanceStore {
	return &TaskInstanceStore{reader: reader, writer: writer}
}

// Create inserts a new task in Pending status, unassigned.
func (s *TaskInstanceStore) Create(ctx context.Context, kind model.TaskKind, inputData any) (model.TaskInstance, error) {
	id := uuid.New()
	row := s.writer.QueryRow(ctx, `
		INSERT INTO tasks (id, task_kind_id, input_data, status, assigned_to)
		VALUES ($1, $2, $3, $4, NULL)
		RETURNING created_at
	`, id, kind.ID, inputData, string(model.StatusPending))

	var createdAt pgxTimestamp
	if err := row.Scan(&createdAt); err != nil {
		return model.TaskInstance{}, fmt.Errorf("store: create task: %w", err)
	}

	return model.TaskInstance{
		ID:        id,
		TaskKind:  kind,
		InputData: inputData,
		Status:    model.StatusPending,
		CreatedAt: createdAt.toModel(),
	}, nil
}

// Get reads a task by id, joined with its task kind. When includeResult is
// true, the most recently created result row for the task is attached.
func (s *TaskInstanceStore) Get(ctx context.Context, id uuid.UUID, includeResult bool) (model.TaskInstance, error) {
	row := s.reader.QueryRow(ctx, `
		SELECT t.id, t.task_kind_id, tk.name, t.input_data, t.status, t.assigned_to, t.created_at
		FROM tasks t
		JOIN task_kinds tk ON tk.id = t.task_kind_id
		WHERE t.id = $1
	`, id)

	var task model.TaskInstance
	var status string
	var createdAt pgxTimestamp
	var assignedTo *uuid.UUID
	if err := row.Scan(&task.ID, &task.TaskKind.ID, &task.TaskKind.Name, &task.InputData, &status, &assignedTo, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TaskInstance{}, ErrNotFound
		}
		return model.TaskInstance{}, fmt.Errorf("store: get task %s: %w", id, err)
	}
	task.Status = model.Status(status)
	task.AssignedTo = assignedTo
	task.CreatedAt = createdAt.toModel()

	if includeResult {
		result, err := s.latestResult(ctx, id)
		if err != nil {
			return model.TaskInstance{}, err
		}
		task.Result = result
	}

	return task, nil
}

func (s *TaskInstanceStore) latestResult(ctx context.Context, taskID uuid.UUID) (*model.TaskResult, error) {
	row := s.reader.QueryRow(ctx, `
		SELECT task_id, worker_id, output_data, error_data, created_at
		FROM task_results
		WHERE task_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, taskID)

	var result model.TaskResult
	var createdAt pgxTimestamp
	if err := row.Scan(&result.TaskID, &result.WorkerID, &result.OutputData, &result.ErrorData, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: latest result for task %s: %w", taskID, err)
	}
	result.CreatedAt = createdAt.toModel()
	return &result, nil
}

// AssignToWorker sets assigned_to and status=Queued in one statement.
func (s *TaskInstanceStore) AssignToWorker(ctx context.Context, taskID, workerID uuid.UUID) error {
	if _, err := s.writer.Exec(ctx, `
		UPDATE tasks SET assigned_to = $1, status = $2 WHERE id = $3
	`, workerID, string(model.StatusQueued), taskID); err != nil {
		return fmt.Errorf("store: assign task %s to worker %s: %w", taskID, workerID, err)
	}
	return nil
}

// UpdateStatus sets a task's status without validating the transition; the
// core never rejects a worker-reported transition (see DESIGN.md).
func (s *TaskInstanceStore) UpdateStatus(ctx context.Context, taskID uuid.UUID, status model.Status) error {
	if _, err := s.writer.Exec(ctx, `
		UPDATE tasks SET status = $1 WHERE id = $2
	`, string(status), taskID); err != nil {
		return fmt.Errorf("store: update status of task %s: %w", taskID, err)
	}
	return nil
}

// UploadResult sets status=Completed and inserts a result row with
// output_data set and error_data null, in one transaction.
func (s *TaskInstanceStore) UploadResult(ctx context.Context, taskID, workerID uuid.UUID, output any) (model.TaskResult, error) {
	return s.uploadOutcome(ctx, taskID, workerID, model.StatusCompleted, output, nil)
}

// UploadError sets status=Failed and inserts a result row with error_data
// set and output_data null, in one transaction.
func (s *TaskInstanceStore) UploadError(ctx context.Context, taskID, workerID uuid.UUID, errData any) (model.TaskResult, error) {
	return s.uploadOutcome(ctx, taskID, workerID, model.StatusFailed, nil, errData)
}

func (s *TaskInstanceStore) uploadOutcome(ctx context.Context, taskID, workerID uuid.UUID, status model.Status, output, errData any) (model.TaskResult, error) {
	var result model.TaskResult
	err := db.WithTx(ctx, s.writer, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE tasks SET status = $1 WHERE id = $2`, string(status), taskID); err != nil {
			return fmt.Errorf("update task status: %w", err)
		}

		var createdAt pgxTimestamp
		row := tx.QueryRow(ctx, `
			INSERT INTO task_results (task_id, worker_id, output_data, error_data)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, taskID, workerID, output, errData)
		if err := row.Scan(&createdAt); err != nil {
			return fmt.Errorf("insert task result: %w", err)
		}

		result = model.TaskResult{
			TaskID:     taskID,
			WorkerID:   workerID,
			OutputData: output,
			ErrorData:  errData,
			CreatedAt:  createdAt.toModel(),
		}
		return nil
	})
	if err != nil {
		return model.TaskResult{}, fmt.Errorf("store: upload outcome for task %s: %w", taskID, err)
	}
	return result, nil
}
