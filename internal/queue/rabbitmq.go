package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultQueueName is the default queue name
	DefaultQueueName = "profile_refresh_jobs"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "profile_refresh_jobs_dlq"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "vitalog_jobs"
	// DefaultDelayedExchangeName is the default delayed exchange name (requires plugin)
	DefaultDelayedExchangeName = "vitalog_jobs_delayed"
)

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn                *amqp.Connection
	channel             *amqp.Channel
	queueName           string
	dlqName             string
	exchangeName        string
	delayedExchangeName string
}

// NewRabbitMQQueue creates a new RabbitMQ queue
func NewRabbitMQQueue(amqpURL string) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue := &RabbitMQQueue{
		conn:                conn,
		channel:             ch,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
	}

	if err := queue.setup(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return queue, nil
}

// setup declares exchanges and queues
func (q *RabbitMQQueue) setup() error {
	// Delayed exchange requires the rabbitmq_delayed_message_exchange plugin;
	// without it delayed jobs degrade to immediate delivery.
	delayedArgs := amqp.Table{
		"x-delayed-type": "direct",
	}
	err := q.channel.ExchangeDeclare(
		q.delayedExchangeName,
		"x-delayed-message",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		delayedArgs,
	)
	if err != nil {
		if q.channel.IsClosed() {
			newCh, openErr := q.conn.Channel()
			if openErr != nil {
				return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
			}
			q.channel = newCh
		}
		fmt.Printf("Warning: delayed message exchange not available (plugin may not be installed): %v\n", err)
	}

	err = q.channel.ExchangeDeclare(
		q.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		q.dlqName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{},
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	err = q.channel.QueueBind(
		q.dlqName,
		"dlq",
		q.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": "dlq",
	}
	_, err = q.channel.QueueDeclare(
		q.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		queueArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = q.channel.QueueBind(
		q.queueName,
		"jobs",
		q.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}

	// Bind to delayed exchange if available (ignore error if plugin not installed)
	_ = q.channel.QueueBind(
		q.queueName,
		"jobs",
		q.delayedExchangeName,
		false,
		nil,
	)

	return nil
}

// Enqueue adds a job to the queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         jobJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
	}

	if job.NotAfter != nil {
		ttl := time.Until(*job.NotAfter)
		if ttl > 0 {
			publishing.Expiration = fmt.Sprintf("%d", int(ttl.Milliseconds()))
		}
	}

	exchangeName := q.exchangeName
	if job.NotBefore != nil {
		if delay := time.Until(*job.NotBefore); delay > 0 {
			exchangeName = q.delayedExchangeName
			publishing.Headers = amqp.Table{
				"x-delay": int(delay.Milliseconds()),
			}
		}
	}

	err = q.channel.PublishWithContext(
		ctx,
		exchangeName,
		"jobs",
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

// Consume returns a channel of messages from the queue using async delivery
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	// Dedicated channel for consuming, separate from the publish channel
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	// prefetchCount=1 gives fair dispatch across workers
	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		if closeErr := consumeCh.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.queueName,
		"",    // consumer tag (auto-generate)
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		if closeErr := consumeCh.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() {
			if err := consumeCh.Close(); err != nil {
				_ = err
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				if delivery.Expiration != "" {
					// expired, don't requeue
					_ = delivery.Nack(false, false)
					continue
				}

				var job Job
				if err := json.Unmarshal(delivery.Body, &job); err != nil {
					// invalid message, send to DLQ
					_ = delivery.Nack(false, false)
					errChan <- fmt.Errorf("failed to unmarshal job: %w", err)
					continue
				}

				if !job.ShouldProcess() {
					// not ready yet, requeue for later
					_ = delivery.Nack(false, true)
					continue
				}

				msg := &Message{
					Job:         &job,
					DeliveryTag: delivery.DeliveryTag,
					Channel:     consumeCh,
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// HealthCheck verifies the queue connection is healthy
func (q *RabbitMQQueue) HealthCheck(_ context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	if q.channel == nil || q.channel.IsClosed() {
		return fmt.Errorf("rabbitmq channel is closed")
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
