package broker

import "errors"

// Sentinel errors surfaced by the broker driver and coordinator.
var (
	// ErrConnectFailed is returned when the driver cannot establish or
	// reuse a connection to the broker.
	ErrConnectFailed = errors.New("broker: connect failed")

	// ErrDeclareFailed is returned when declaring or binding an exchange
	// or queue fails.
	ErrDeclareFailed = errors.New("broker: declare failed")

	// ErrPublishFailed is returned when a publish is not accepted by the
	// broker.
	ErrPublishFailed = errors.New("broker: publish failed")

	// ErrNoAvailableWorker is returned by the coordinator when no
	// registered worker is eligible for a task's kind.
	ErrNoAvailableWorker = errors.New("broker: no available worker")

	// ErrWorkerNotRegistered is returned by RemoveWorker when the given
	// id is not present in the in-memory registry.
	ErrWorkerNotRegistered = errors.New("broker: worker not registered")
)
