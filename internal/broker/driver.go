package broker

import "context"

// Driver is the narrow capability set the dispatch core depends on: declare
// and tear down a direct-exchange topology, and publish a message carrying
// a stable message id and the (mislabeled, see Publish) task_kind header.
//
// Exactly one concrete Driver is injected at startup; the coordinator never
// sees driver-specific types.
type Driver interface {
	// RegisterExchange declares a durable direct exchange. Idempotent.
	RegisterExchange(ctx context.Context, name string) error

	// RegisterQueue declares a durable queue and binds it to exchange under
	// routingKey. Idempotent.
	RegisterQueue(ctx context.Context, exchange, queue, routingKey string) error

	// DeleteQueue removes queue if present. Absence is not an error.
	DeleteQueue(ctx context.Context, queue string) error

	// DeleteExchange removes name if present. Absence is not an error.
	DeleteExchange(ctx context.Context, name string) error

	// Publish sends one message to exchange under routingKey. messageID is
	// set as the AMQP message id for downstream deduplication. taskID is
	// written into a header named "task_kind" — this preserves a known
	// mislabeling in the source system (the header was meant to carry the
	// task kind name but carries the task id instead); see DESIGN.md.
	Publish(ctx context.Context, exchange, routingKey string, payload []byte, messageID, taskID string) error
}
