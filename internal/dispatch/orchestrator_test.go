package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasttq/galactus/internal/broker"
	"github.com/fasttq/galactus/internal/model"
	"github.com/fasttq/galactus/internal/store"
)

// fakeKindStore, fakeWorkerStore, fakeTaskStore, and fakeCoordinator are
// minimal in-memory stand-ins for the interfaces the orchestrator depends
// on, letting these tests exercise the five protocols without a database
// or broker.

type fakeKindStore struct {
	mu    sync.Mutex
	byName map[string]model.TaskKind
}

func newFakeKindStore() *fakeKindStore {
	return &fakeKindStore{byName: map[string]model.TaskKind{}}
}

func (f *fakeKindStore) GetOrCreate(_ context.Context, name string) (model.TaskKind, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.byName[name]; ok {
		return k, nil
	}
	k := model.TaskKind{ID: uuid.New(), Name: name}
	f.byName[name] = k
	return k, nil
}

func (f *fakeKindStore) ListAll(_ context.Context) ([]model.TaskKind, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.TaskKind, 0, len(f.byName))
	for _, k := range f.byName {
		out = append(out, k)
	}
	return out, nil
}

type fakeWorkerStore struct {
	mu      sync.Mutex
	workers map[uuid.UUID]model.Worker
}

func newFakeWorkerStore() *fakeWorkerStore {
	return &fakeWorkerStore{workers: map[uuid.UUID]model.Worker{}}
}

func (f *fakeWorkerStore) Register(_ context.Context, id uuid.UUID, name string, kinds []model.TaskKind) (model.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := model.Worker{ID: id, Name: name, TaskKinds: kinds, Active: true, RegisteredAt: model.Now()}
	f.workers[id] = w
	return w, nil
}

func (f *fakeWorkerStore) GetByID(_ context.Context, id uuid.UUID) (model.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[id]
	if !ok {
		return model.Worker{}, store.ErrNotFound
	}
	return w, nil
}

func (f *fakeWorkerStore) ListAll(_ context.Context) ([]model.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Worker, 0, len(f.workers))
	for _, w := range f.workers {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeWorkerStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[id]
	if !ok {
		return store.ErrNotFound
	}
	w.Active = active
	f.workers[id] = w
	return nil
}

func (f *fakeWorkerStore) RecordHeartbeat(_ context.Context, _ uuid.UUID) error { return nil }
func (f *fakeWorkerStore) LatestHeartbeat(_ context.Context, _ uuid.UUID) (model.Time, error) {
	return model.Now(), nil
}

type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]model.TaskInstance
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[uuid.UUID]model.TaskInstance{}}
}

func (f *fakeTaskStore) Create(_ context.Context, kind model.TaskKind, inputData any) (model.TaskInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := model.TaskInstance{ID: uuid.New(), TaskKind: kind, InputData: inputData, Status: model.StatusPending, CreatedAt: model.Now()}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskStore) Get(_ context.Context, id uuid.UUID, _ bool) (model.TaskInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return model.TaskInstance{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTaskStore) AssignToWorker(_ context.Context, taskID, workerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	t.AssignedTo = &workerID
	t.Status = model.StatusQueued
	f.tasks[taskID] = t
	return nil
}

func (f *fakeTaskStore) UpdateStatus(_ context.Context, taskID uuid.UUID, status model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = status
	f.tasks[taskID] = t
	return nil
}

func (f *fakeTaskStore) UploadResult(_ context.Context, taskID, workerID uuid.UUID, output any) (model.TaskResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return model.TaskResult{}, store.ErrNotFound
	}
	t.Status = model.StatusCompleted
	f.tasks[taskID] = t
	return model.TaskResult{TaskID: taskID, WorkerID: workerID, OutputData: output, CreatedAt: model.Now()}, nil
}

func (f *fakeTaskStore) UploadError(_ context.Context, taskID, workerID uuid.UUID, errData any) (model.TaskResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return model.TaskResult{}, store.ErrNotFound
	}
	t.Status = model.StatusFailed
	f.tasks[taskID] = t
	return model.TaskResult{TaskID: taskID, WorkerID: workerID, ErrorData: errData, CreatedAt: model.Now()}, nil
}

type fakeCoordinator struct {
	mu      sync.Mutex
	workers []model.Worker
	fail    bool
}

func (f *fakeCoordinator) RegisterWorker(_ context.Context, w model.Worker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers = append(f.workers, w)
	return nil
}

func (f *fakeCoordinator) RemoveWorker(_ context.Context, workerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.workers {
		if w.ID == workerID {
			f.workers = append(f.workers[:i], f.workers[i+1:]...)
			return nil
		}
	}
	return broker.ErrWorkerNotRegistered
}

func (f *fakeCoordinator) Publish(_ context.Context, task model.TaskInstance) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return uuid.Nil, broker.ErrPublishFailed
	}
	for _, w := range f.workers {
		if w.CanHandle(task.TaskKind.Name) {
			return w.ID, nil
		}
	}
	return uuid.Nil, broker.ErrNoAvailableWorker
}

func (f *fakeCoordinator) Workers() []model.Worker {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Worker, len(f.workers))
	copy(out, f.workers)
	return out
}

func newTestOrchestrator() (*Orchestrator, *fakeCoordinator) {
	coord := &fakeCoordinator{}
	o := New(newFakeKindStore(), newFakeWorkerStore(), newFakeTaskStore(), coord)
	return o, coord
}

func TestSubmitTask_Success(t *testing.T) {
	o, coord := newTestOrchestrator()
	ctx := context.Background()

	worker, err := o.RegisterWorker(ctx, "w1", []string{"email"})
	require.NoError(t, err)

	task, err := o.SubmitTask(ctx, "email", map[string]any{"to": "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, task.Status)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, worker.ID, *task.AssignedTo)
	assert.Len(t, coord.workers, 1)
}

func TestSubmitTask_NoAvailableWorkerLeavesTaskPending(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	_, err := o.RegisterWorker(ctx, "w1", []string{"other"})
	require.NoError(t, err)

	_, err = o.SubmitTask(ctx, "email", nil)
	require.Error(t, err)
	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNoAvailableWorker, derr.Kind)

	tasks := o.tasks.(*fakeTaskStore)
	require.Len(t, tasks.tasks, 1)
	for _, task := range tasks.tasks {
		assert.Equal(t, model.StatusPending, task.Status)
		assert.Nil(t, task.AssignedTo)
	}
}

func TestUpdateTaskStatus_UnknownTaskNotFound(t *testing.T) {
	o, _ := newTestOrchestrator()
	err := o.UpdateTaskStatus(context.Background(), uuid.New(), "running")
	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, derr.Kind)
}

func TestUpdateTaskStatus_InvalidStatus(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	_, err := o.RegisterWorker(ctx, "w1", []string{"k"})
	require.NoError(t, err)
	task, err := o.SubmitTask(ctx, "k", nil)
	require.NoError(t, err)

	err = o.UpdateTaskStatus(ctx, task.ID, "bogus")
	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidationFailed, derr.Kind)
}

func TestSubmitTaskResult_ResultThenErrorReplacesStatus(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	_, err := o.RegisterWorker(ctx, "w1", []string{"k"})
	require.NoError(t, err)
	task, err := o.SubmitTask(ctx, "k", nil)
	require.NoError(t, err)

	_, err = o.SubmitTaskResult(ctx, task.ID, map[string]any{"ok": true}, false)
	require.NoError(t, err)

	got, err := o.GetTask(ctx, task.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	_, err = o.SubmitTaskResult(ctx, task.ID, "boom", true)
	require.NoError(t, err)

	got, err = o.GetTask(ctx, task.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
}

func TestUnregisterWorker_UnknownNotFound(t *testing.T) {
	o, _ := newTestOrchestrator()
	err := o.UnregisterWorker(context.Background(), uuid.New())
	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, derr.Kind)
}

func TestRegisterWorker_RequiresAtLeastOneKind(t *testing.T) {
	o, _ := newTestOrchestrator()
	_, err := o.RegisterWorker(context.Background(), "w1", nil)
	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidationFailed, derr.Kind)
}

func TestRebuildRegistry_OnlyActiveWorkers(t *testing.T) {
	o, coord := newTestOrchestrator()
	ctx := context.Background()

	w1, err := o.RegisterWorker(ctx, "w1", []string{"k"})
	require.NoError(t, err)
	w2, err := o.RegisterWorker(ctx, "w2", []string{"k"})
	require.NoError(t, err)

	// Deactivate w1 in the store directly, bypassing the broker, the way a
	// prior process's unregister would have left it before this process
	// started.
	workers := o.workers.(*fakeWorkerStore)
	require.NoError(t, workers.SetActive(ctx, w1.ID, false))

	coord.workers = nil // simulate a fresh process with no in-memory registry
	require.NoError(t, o.RebuildRegistry(ctx))

	ids := map[uuid.UUID]bool{}
	for _, w := range coord.Workers() {
		ids[w.ID] = true
	}
	assert.False(t, ids[w1.ID], "inactive worker must not be rebuilt into the registry")
	assert.True(t, ids[w2.ID], "active worker must be rebuilt into the registry")
}
