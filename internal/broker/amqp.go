package broker

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPDriver is a Driver backed by a direct-exchange RabbitMQ broker. A
// single connection is shared across calls; each operation opens its own
// short-lived channel, mirroring the one-channel-per-operation pattern used
// by the original RabbitBroker.
type AMQPDriver struct {
	conn *amqp.Connection
}

// DialAMQP connects to addr (an amqp:// URI) and returns a ready Driver.
func DialAMQP(addr string) (*AMQPDriver, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, errors.Join(ErrConnectFailed, err)
	}
	return &AMQPDriver{conn: conn}, nil
}

// Close tears down the underlying connection.
func (d *AMQPDriver) Close() error {
	return d.conn.Close()
}

// Ping reports whether the connection is still usable, for readiness checks.
func (d *AMQPDriver) Ping(context.Context) error {
	if d.conn == nil || d.conn.IsClosed() {
		return ErrConnectFailed
	}
	ch, err := d.conn.Channel()
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	return ch.Close()
}

func (d *AMQPDriver) RegisterExchange(_ context.Context, name string) error {
	ch, err := d.conn.Channel()
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		name,
		amqp.ExchangeDirect,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return errors.Join(ErrDeclareFailed, err)
	}
	return nil
}

func (d *AMQPDriver) RegisterQueue(_ context.Context, exchange, queue, routingKey string) error {
	ch, err := d.conn.Channel()
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return errors.Join(ErrDeclareFailed, err)
	}

	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return errors.Join(ErrDeclareFailed, err)
	}
	return nil
}

func (d *AMQPDriver) DeleteQueue(_ context.Context, queue string) error {
	ch, err := d.conn.Channel()
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	defer ch.Close()

	if _, err := ch.QueueDelete(queue, false, false, false); err != nil {
		var amqpErr *amqp.Error
		if errors.As(err, &amqpErr) && amqpErr.Code == amqp.NotFound {
			return nil
		}
		return errors.Join(ErrDeclareFailed, err)
	}
	return nil
}

func (d *AMQPDriver) DeleteExchange(_ context.Context, name string) error {
	ch, err := d.conn.Channel()
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	defer ch.Close()

	if err := ch.ExchangeDelete(name, false, false); err != nil {
		var amqpErr *amqp.Error
		if errors.As(err, &amqpErr) && amqpErr.Code == amqp.NotFound {
			return nil
		}
		return errors.Join(ErrDeclareFailed, err)
	}
	return nil
}

func (d *AMQPDriver) Publish(ctx context.Context, exchange, routingKey string, payload []byte, messageID, taskID string) error {
	ch, err := d.conn.Channel()
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	err = ch.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			MessageId:    messageID,
			DeliveryMode: amqp.Persistent,
			// Header named "task_kind" carries the task id, not the kind
			// name — preserved verbatim, see DESIGN.md.
			Headers: amqp.Table{"task_kind": taskID},
		},
	)
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}

	select {
	case confirmed := <-confirms:
		if !confirmed.Ack {
			return fmt.Errorf("%w: broker did not ack delivery tag %d", ErrPublishFailed, confirmed.DeliveryTag)
		}
		return nil
	case <-ctx.Done():
		return errors.Join(ErrPublishFailed, ctx.Err())
	}
}
