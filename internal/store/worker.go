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

// WorkerStore persists worker rows and their task-kind associations (C4).
type WorkerStore struct {
	reader *pgxpool.Pool
	writer *pgxpool.Pool
}

// NewWorkerStore creates a WorkerStore.
func NewWorkerStore(reader, writer *pgxpool.Pool) *WorkerStore {
	return &WorkerStore{reader: reader, writer: writer}
}

// Register upserts the worker row (registered_at is set only on first
// insert; subsequent upserts never overwrite it), then fully replaces its
// task-kind associations with kinds — re-registration replaces the set,
// it does not merge with whatever was there before.
func (s *WorkerStore) Register(ctx context.Context, id uuid.UUID, name string, kinds []model.TaskKind) (model.Worker, error) {
	err := db.WithTx(ctx, s.writer, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO workers (id, name, registered_at, active)
			VALUES ($1, $2, now(), true)
			ON CONFLICT (id) DO UPDATE SET name = $2, active = true
		`, id, name); err != nil {
			return fmt.Errorf("upsert worker: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM worker_task_kinds WHERE worker_id = $1`, id); err != nil {
			return fmt.Errorf("clear worker task kinds: %w", err)
		}

		for _, kind := range kinds {
			if _, err := tx.Exec(ctx, `
				INSERT INTO task_kinds (id, name) VALUES ($1, $2)
				ON CONFLICT (id) DO NOTHING
			`, kind.ID, kind.Name); err != nil {
				return fmt.Errorf("ensure task kind %s: %w", kind.ID, err)
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO worker_task_kinds (worker_id, task_kind_id) VALUES ($1, $2)
			`, id, kind.ID); err != nil {
				return fmt.Errorf("link worker task kind: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Worker{}, fmt.Errorf("store: register worker %s: %w", id, err)
	}

	return s.GetByID(ctx, id)
}

// GetByID reads one worker joined with its task kinds.
func (s *WorkerStore) GetByID(ctx context.Context, id uuid.UUID) (model.Worker, error) {
	row := s.reader.QueryRow(ctx, `
		SELECT name, registered_at, active FROM workers WHERE id = $1
	`, id)

	w := model.Worker{ID: id}
	var registeredAt pgxTimestamp
	if err := row.Scan(&w.Name, &registeredAt, &w.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Worker{}, ErrNotFound
		}
		return model.Worker{}, fmt.Errorf("store: get worker %s: %w", id, err)
	}
	w.RegisteredAt = registeredAt.toModel()

	kinds, err := s.taskKindsForWorker(ctx, id)
	if err != nil {
		return model.Worker{}, err
	}
	w.TaskKinds = kinds
	return w, nil
}

// ListAll reads every worker, each joined with its task kinds.
func (s *WorkerStore) ListAll(ctx context.Context) ([]model.Worker, error) {
	rows, err := s.reader.Query(ctx, `
		SELECT id, name, registered_at, active FROM workers ORDER BY registered_at
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list workers: %w", err)
	}
	defer rows.Close()

	var workers []model.Worker
	for rows.Next() {
		var w model.Worker
		var registeredAt pgxTimestamp
		if err := rows.Scan(&w.ID, &w.Name, &registeredAt, &w.Active); err != nil {
			return nil, fmt.Errorf("store: scan worker: %w", err)
		}
		w.RegisteredAt = registeredAt.toModel()
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list workers: %w", err)
	}

	for i := range workers {
		kinds, err := s.taskKindsForWorker(ctx, workers[i].ID)
		if err != nil {
			return nil, err
		}
		workers[i].TaskKinds = kinds
	}
	return workers, nil
}

// SetActive flips a worker's active flag. It fails with ErrNotFound when no
// row was affected.
func (s *WorkerStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.writer.Exec(ctx, `UPDATE workers SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("store: set worker %s active=%v: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordHeartbeat appends a heartbeat row for worker id.
func (s *WorkerStore) RecordHeartbeat(ctx context.Context, id uuid.UUID) error {
	if _, err := s.writer.Exec(ctx, `
		INSERT INTO worker_heartbeats (worker_id, heartbeat_time) VALUES ($1, now())
	`, id); err != nil {
		return fmt.Errorf("store: record heartbeat for worker %s: %w", id, err)
	}
	return nil
}

// LatestHeartbeat returns the most recent heartbeat time for worker id.
func (s *WorkerStore) LatestHeartbeat(ctx context.Context, id uuid.UUID) (model.Time, error) {
	row := s.reader.QueryRow(ctx, `
		SELECT heartbeat_time FROM worker_heartbeats
		WHERE worker_id = $1 ORDER BY heartbeat_time DESC LIMIT 1
	`, id)

	var ts pgxTimestamp
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Time{}, ErrNotFound
		}
		return model.Time{}, fmt.Errorf("store: latest heartbeat for worker %s: %w", id, err)
	}
	return ts.toModel(), nil
}

func (s *WorkerStore) taskKindsForWorker(ctx context.Context, workerID uuid.UUID) ([]model.TaskKind, error) {
	rows, err := s.reader.Query(ctx, `
		SELECT tk.id, tk.name
		FROM task_kinds tk
		JOIN worker_task_kinds wtk ON wtk.task_kind_id = tk.id
		WHERE wtk.worker_id = $1
		ORDER BY tk.name
	`, workerID)
	if err != nil {
		return nil, fmt.Errorf("store: list task kinds for worker %s: %w", workerID, err)
	}
	defer rows.Close()

	var kinds []model.TaskKind
	for rows.Next() {
		var k model.TaskKind
		if err := rows.Scan(&k.ID, &k.Name); err != nil {
			return nil, fmt.Errorf("store: scan task kind: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}
