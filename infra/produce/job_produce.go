package produce

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// JobCreatedQueue carries job identifiers from submission to the
	// worker. Durable, at-least-once.
	JobCreatedQueue = "job.created"
)

type JobService struct {
	channel *amqp.Channel
}

func InitJobService(channel *amqp.Channel) (*JobService, error) {
	_, err := channel.QueueDeclare(
		JobCreatedQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare job queue: %w", err)
	}

	return &JobService{channel: channel}, nil
}

// PublishJobCreated enqueues a job identifier as a persistent message.
// The message carries only the id; the jobs table stays the source of
// truth.
func (s *JobService) PublishJobCreated(ctx context.Context, jobID uuid.UUID) error {
	return s.channel.PublishWithContext(
		ctx,
		"",              // default exchange
		JobCreatedQueue, // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "text/plain",
			Body:         []byte(jobID.String()),
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
