package queue

import (
	"context"
)

// MessageInterface defines the interface for queue messages
// This enables better testability by allowing mock implementations
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the interface for job queues
type JobQueue interface {
	// Enqueue adds a job to the queue
	Enqueue(ctx context.Context, job *Job) error

	// Consume returns a channel of messages from the queue.
	// Messages are delivered asynchronously as they arrive; the caller is
	// responsible for acknowledging each one. Prefetch controls how many
	// unacknowledged messages each consumer can hold.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}
