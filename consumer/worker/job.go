package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wwada/optiroute/entity"
	"github.com/wwada/optiroute/geocoder"
	"github.com/wwada/optiroute/infra"
	"github.com/wwada/optiroute/infra/produce"
	"github.com/wwada/optiroute/optimizer"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxOptimizeAttempts = 3

// JobStore is the durable record of job state. Satisfied by
// repository.JobRepository.
type JobStore interface {
	FindByID(id uuid.UUID) (*entity.Job, error)
	UpdateStatus(id uuid.UUID, status entity.JobStatus) error
	UpdateResult(id uuid.UUID, status entity.JobStatus, result datatypes.JSON) error
}

// InputResolver yields the parsed stop rows behind a job's input
// reference. Satisfied by input.Resolver.
type InputResolver interface {
	Resolve(ctx context.Context, reference string) ([]entity.Stop, error)
}

// AddressResolver maps address text to coordinates. Satisfied by
// geocoder.Geocoder.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) (*entity.Coordinates, error)
}

// Optimizer runs the two-phase route optimization. Satisfied by
// optimizer.RouteOptimizer.
type Optimizer interface {
	Optimize(ctx context.Context, jobID uuid.UUID, stops []entity.Stop) (*entity.RouteResult, error)
}

type JobConsumer struct {
	channel   *amqp.Channel
	store     JobStore
	inputs    InputResolver
	geocoder  AddressResolver
	optimizer Optimizer
	logger    *infra.LoggerClient

	retryWait func(attempt int) time.Duration
}

func NewJobConsumer(channel *amqp.Channel, store JobStore, inputs InputResolver, addresses AddressResolver, opt Optimizer, logger *infra.LoggerClient) *JobConsumer {
	return &JobConsumer{
		channel:   channel,
		store:     store,
		inputs:    inputs,
		geocoder:  addresses,
		optimizer: opt,
		logger:    logger,
		retryWait: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
}

func (c *JobConsumer) Start(ctx context.Context) error {
	// One message at a time: a job is processed to completion before the
	// next is pulled. Concurrency comes from running more instances.
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		produce.JobCreatedQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume job queue: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Job Consumer] Started listening on queue: %s", produce.JobCreatedQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Job Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Job Consumer] Channel closed")
					return
				}
				c.handleDelivery(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *JobConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	jobID, err := uuid.Parse(string(msg.Body))
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Job Consumer] Received invalid job id %q", string(msg.Body))
		_ = msg.Nack(false, false)
		return
	}

	if err := c.ProcessJob(ctx, jobID); err != nil {
		// The outcome was not persisted; requeue so a redelivery retries.
		c.logger.ErrorWithContextf(ctx, err, "[Job Consumer] [%s] Processing did not persist, requeueing: %v", jobID, err)
		_ = msg.Nack(false, true)
		return
	}

	// Ack strictly after the terminal state is durable.
	_ = msg.Ack(false)
}

// ProcessJob drives a single job through its state machine. A nil return
// means the job is in a terminal state (or was dropped as unknown) and
// the message may be acknowledged. A non-nil return means the outcome
// could not be persisted and the delivery must be retried. Redelivery is
// safe: current status is re-read before acting and terminal states are
// never overwritten.
func (c *JobConsumer) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := c.store.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logger.WarningWithContextf(ctx, "[Job Consumer] [%s] Job not found in store, dropping message", jobID)
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}

	if job.Status.IsTerminal() {
		c.logger.InfoWithContextf(ctx, "[Job Consumer] [%s] Redelivered job already %s, skipping", jobID, job.Status)
		return nil
	}

	// Commit the transition before any further work so a concurrent
	// status read never observes a gap.
	if err := c.store.UpdateStatus(jobID, entity.JobStatusProcessing); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Job Consumer] [%s] Processing started", jobID)

	status, payload := c.executeJob(ctx, job)

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	if err := c.store.UpdateResult(jobID, status, datatypes.JSON(raw)); err != nil {
		return fmt.Errorf("failed to persist job outcome: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Job Consumer] [%s] Finished with status %s", jobID, status)
	return nil
}

// executeJob runs the processing pipeline and translates every failure
// into the structured result shape. Raw upstream error text only ever
// lands in JobError.Detail.
func (c *JobConsumer) executeJob(ctx context.Context, job *entity.Job) (entity.JobStatus, interface{}) {
	rows, err := c.inputs.Resolve(ctx, job.InputFilePath)
	if err != nil {
		return entity.JobStatusFailed, entity.JobError{
			Kind:    entity.JobErrorKindInput,
			Message: "input file could not be read",
			Detail:  err.Error(),
		}
	}

	c.logger.InfoWithContextf(ctx, "[Job Consumer] [%s] Parsed %d stop rows", job.ID, len(rows))

	resolved := make([]entity.Stop, 0, len(rows))
	skipped := 0
	for _, stop := range rows {
		coords, err := c.geocoder.Resolve(ctx, stop.Address)
		if err != nil {
			// A stop that cannot be geocoded is excluded, whether the
			// address is unknown or the provider call failed.
			if errors.Is(err, geocoder.ErrNotFound) {
				c.logger.WarningWithContextf(ctx, "[Job Consumer] [%s] Address %q not found, skipping stop", job.ID, stop.Address)
			} else {
				c.logger.ErrorWithContextf(ctx, err, "[Job Consumer] [%s] Geocoding %q failed, skipping stop", job.ID, stop.Address)
			}
			skipped++
			continue
		}
		stop.Coordinates = coords
		resolved = append(resolved, stop)
	}

	if len(resolved) < 2 {
		return entity.JobStatusFailed, entity.JobError{
			Kind:    entity.JobErrorKindInput,
			Message: fmt.Sprintf("fewer than 2 geocodable stops (%d of %d rows resolved)", len(resolved), len(rows)),
		}
	}

	route, err := c.optimizeWithRetry(ctx, job.ID, resolved)
	if err != nil {
		if errors.Is(err, optimizer.ErrTooFewStops) {
			return entity.JobStatusFailed, entity.JobError{
				Kind:    entity.JobErrorKindInput,
				Message: err.Error(),
			}
		}

		var optErr *optimizer.OptimizationError
		if errors.As(err, &optErr) {
			return entity.JobStatusFailed, entity.JobError{
				Kind:    entity.JobErrorKindProvider,
				Message: "route optimization failed",
				Detail:  optErr.Detail,
			}
		}

		return entity.JobStatusFailed, entity.JobError{
			Kind:    entity.JobErrorKindProvider,
			Message: "route optimization failed",
			Detail:  err.Error(),
		}
	}

	message := "route optimized successfully"
	if route.Degraded {
		message = "route optimized; road geometry unavailable, summary is an estimate"
	}

	return entity.JobStatusCompleted, entity.JobResult{
		Message:         message,
		ParsedRowsCount: len(rows),
		SkippedStops:    skipped,
		Route:           route,
	}
}

func (c *JobConsumer) optimizeWithRetry(ctx context.Context, jobID uuid.UUID, stops []entity.Stop) (*entity.RouteResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxOptimizeAttempts; attempt++ {
		route, err := c.optimizer.Optimize(ctx, jobID, stops)
		if err == nil {
			return route, nil
		}
		lastErr = err

		// Input errors cannot succeed on retry.
		if errors.Is(err, optimizer.ErrTooFewStops) {
			return nil, err
		}

		c.logger.ErrorWithContextf(ctx, err, "[Job Consumer] [%s] Optimization attempt %d/%d failed: %v", jobID, attempt, maxOptimizeAttempts, err)

		if attempt < maxOptimizeAttempts {
			time.Sleep(c.retryWait(attempt))
		}
	}

	return nil, lastErr
}
