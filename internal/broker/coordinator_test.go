package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasttq/galactus/internal/model"
)

type fakeDriver struct {
	exchanges  map[string]bool
	queues     map[string]string
	published  []publishedMessage
	publishErr error
	declareErr error
}

type publishedMessage struct {
	exchange   string
	routingKey string
	messageID  string
	taskID     string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{exchanges: map[string]bool{}, queues: map[string]string{}}
}

func (f *fakeDriver) RegisterExchange(_ context.Context, name string) error {
	if f.declareErr != nil {
		return f.declareErr
	}
	f.exchanges[name] = true
	return nil
}

func (f *fakeDriver) RegisterQueue(_ context.Context, exchange, queue, routingKey string) error {
	if f.declareErr != nil {
		return f.declareErr
	}
	f.queues[queue] = routingKey
	_ = exchange
	return nil
}

func (f *fakeDriver) DeleteQueue(_ context.Context, queue string) error {
	delete(f.queues, queue)
	return nil
}

func (f *fakeDriver) DeleteExchange(_ context.Context, name string) error {
	delete(f.exchanges, name)
	return nil
}

func (f *fakeDriver) Publish(_ context.Context, exchange, routingKey string, _ []byte, messageID, taskID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMessage{exchange: exchange, routingKey: routingKey, messageID: messageID, taskID: taskID})
	return nil
}

func workerFor(kind string) model.Worker {
	return model.Worker{
		ID:        uuid.New(),
		Name:      "w-" + kind,
		TaskKinds: []model.TaskKind{{ID: uuid.New(), Name: kind}},
		Active:    true,
	}
}

func taskOfKind(kind string) model.TaskInstance {
	return model.TaskInstance{ID: uuid.New(), TaskKind: model.TaskKind{ID: uuid.New(), Name: kind}}
}

func TestCoordinator_RoundRobin(t *testing.T) {
	driver := newFakeDriver()
	ctx := context.Background()
	c, err := NewCoordinator(ctx, driver)
	require.NoError(t, err)

	a, b, cc := workerFor("k"), workerFor("k"), workerFor("k")
	require.NoError(t, c.RegisterWorker(ctx, a))
	require.NoError(t, c.RegisterWorker(ctx, b))
	require.NoError(t, c.RegisterWorker(ctx, cc))

	want := []uuid.UUID{a.ID, b.ID, cc.ID, a.ID}
	for i, w := range want {
		got, err := c.Publish(ctx, taskOfKind("k"))
		require.NoError(t, err)
		assert.Equal(t, w, got, "dispatch %d", i)
	}
}

func TestCoordinator_NoEligibleWorker(t *testing.T) {
	driver := newFakeDriver()
	ctx := context.Background()
	c, err := NewCoordinator(ctx, driver)
	require.NoError(t, err)

	require.NoError(t, c.RegisterWorker(ctx, workerFor("x")))

	_, err = c.Publish(ctx, taskOfKind("y"))
	assert.ErrorIs(t, err, ErrNoAvailableWorker)
	assert.Empty(t, driver.published)
}

func TestCoordinator_EmptyRegistry(t *testing.T) {
	driver := newFakeDriver()
	ctx := context.Background()
	c, err := NewCoordinator(ctx, driver)
	require.NoError(t, err)

	_, err = c.Publish(ctx, taskOfKind("k"))
	assert.ErrorIs(t, err, ErrNoAvailableWorker)
}

func TestCoordinator_ReregisterReplacesNotAppends(t *testing.T) {
	driver := newFakeDriver()
	ctx := context.Background()
	c, err := NewCoordinator(ctx, driver)
	require.NoError(t, err)

	w := workerFor("k")
	require.NoError(t, c.RegisterWorker(ctx, w))
	require.NoError(t, c.RegisterWorker(ctx, w))

	assert.Len(t, c.Workers(), 1)
}

func TestCoordinator_PublishFailureLeavesRegistryUntouched(t *testing.T) {
	driver := newFakeDriver()
	ctx := context.Background()
	c, err := NewCoordinator(ctx, driver)
	require.NoError(t, err)

	a, b := workerFor("k"), workerFor("k")
	require.NoError(t, c.RegisterWorker(ctx, a))
	require.NoError(t, c.RegisterWorker(ctx, b))

	driver.publishErr = errors.New("boom")
	_, err = c.Publish(ctx, taskOfKind("k"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublishFailed)

	// The registry itself is untouched by the failure, and the probe that
	// selected worker a still advanced the cursor to b, exactly as it would
	// have on a successful publish: the cursor advances on every probe
	// regardless of outcome, so a failed publish is not special-cased.
	assert.Len(t, c.Workers(), 2)
	assert.Equal(t, 1, c.cursor)
}

func TestCoordinator_RemoveWorkerNotRegistered(t *testing.T) {
	driver := newFakeDriver()
	ctx := context.Background()
	c, err := NewCoordinator(ctx, driver)
	require.NoError(t, err)

	err = c.RemoveWorker(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrWorkerNotRegistered)
}

func TestCoordinator_RegisterThenPublishMessageID(t *testing.T) {
	driver := newFakeDriver()
	ctx := context.Background()
	c, err := NewCoordinator(ctx, driver)
	require.NoError(t, err)

	w := workerFor("k")
	require.NoError(t, c.RegisterWorker(ctx, w))

	task := taskOfKind("k")
	selected, err := c.Publish(ctx, task)
	require.NoError(t, err)
	require.Equal(t, w.ID, selected)

	require.Len(t, driver.published, 1)
	msg := driver.published[0]
	assert.Equal(t, SubmissionExchange, msg.exchange)
	assert.Equal(t, w.ID.String(), msg.routingKey)
	assert.Equal(t, task.ID.String(), msg.messageID)
	assert.Equal(t, task.ID.String(), msg.taskID, "task_kind header carries the task id, not the kind name")
}
