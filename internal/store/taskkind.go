// Package store implements the relational persistence layer: task kinds,
// workers, and task instances, on top of jackc/pgx/v5's pgxpool.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasttq/galactus/internal/model"
)

// TaskKindStore is the idempotent-by-name catalog of task kinds (C3).
type TaskKindStore struct {
	reader *pgxpool.Pool
	writer *pgxpool.Pool
}

// NewTaskKindStore creates a TaskKindStore. reader serves read-only
// lookups; writer serves the get-or-create insert path.
func NewTaskKindStore(reader, writer *pgxpool.Pool) *TaskKindStore {
	return &TaskKindStore{reader: reader, writer: writer}
}

// GetOrCreate returns the TaskKind row with the given name, inserting one
// with a fresh id if none exists. Concurrent callers racing on the same
// name are serialized by the table's unique constraint via an upsert, so
// repeated calls return rows with identical id and name.
func (s *TaskKindStore) GetOrCreate(ctx context.Context, name string) (model.TaskKind, error) {
	id := uuid.New()
	row := s.writer.QueryRow(ctx, `
		INSERT INTO task_kinds (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = task_kinds.name
		RETURNING id, name
	`, id, name)

	var kind model.TaskKind
	if err := row.Scan(&kind.ID, &kind.Name); err != nil {
		return model.TaskKind{}, fmt.Errorf("store: get-or-create task kind %q: %w", name, err)
	}
	return kind, nil
}

// ListAll returns every known task kind.
func (s *TaskKindStore) ListAll(ctx context.Context) ([]model.TaskKind, error) {
	rows, err := s.reader.Query(ctx, `SELECT id, name FROM task_kinds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list task kinds: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list task kinds: %w", err)
	}
	return kinds, nil
}

// GetByID reads a single task kind by id.
func (s *TaskKindStore) GetByID(ctx context.Context, id uuid.UUID) (model.TaskKind, error) {
	row := s.reader.QueryRow(ctx, `SELECT id, name FROM task_kinds WHERE id = $1`, id)

	var kind model.TaskKind
	if err := row.Scan(&kind.ID, &kind.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TaskKind{}, ErrNotFound
		}
		return model.TaskKind{}, fmt.Errorf("store: get task kind %s: %w", id, err)
	}
	return kind, nil
}
