package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/queue"
	"github.com/vitalog/vitalog-api/internal/services/ai"
)

// profileGenerator matches chat.ProfileService, kept narrow so the worker is
// testable with a plain fake.
type profileGenerator interface {
	Generate(ctx context.Context, userID uuid.UUID) (string, error)
}

// ProfileRefresher processes profile refresh jobs from the queue
type ProfileRefresher struct {
	profiles profileGenerator
	jobQueue queue.JobQueue // for re-enqueueing jobs with delays
	logger   *zap.Logger
}

// NewProfileRefresher creates a new profile refresher
func NewProfileRefresher(profiles profileGenerator, jobQueue queue.JobQueue, logger *zap.Logger) *ProfileRefresher {
	return &ProfileRefresher{
		profiles: profiles,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// ProcessJob processes one queue message based on its job type
func (w *ProfileRefresher) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if !job.ShouldProcess() {
		w.logger.Info("job not ready yet, skipping",
			zap.String("job_id", job.ID.String()),
			zap.Timep("not_before", job.NotBefore),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Warn("failed to ack deferred job", zap.Error(ackErr))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeProfileRefresh:
		if err := w.processProfileRefresh(ctx, job); err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		// Unknown job type, send to DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed to nack unknown job type", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *ProfileRefresher) processProfileRefresh(ctx context.Context, job *queue.Job) error {
	profile, err := w.profiles.Generate(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to refresh profile: %w", err)
	}

	w.logger.Info("profile refreshed",
		zap.String("user_id", job.UserID.String()),
		zap.Int("profile_length", len(profile)),
	)
	return nil
}

// handleJobError retries with provider-aware backoff. Quota and rate limit
// errors are re-enqueued with a NotBefore delay through the delayed exchange;
// other errors nack with requeue until retries run out.
func (w *ProfileRefresher) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if ai.IsQuotaError(err) || ai.IsRateLimitError(err) {
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)

		if job.CanRetry() && w.jobQueue != nil {
			notBefore := time.Now().Add(retryDelay)
			delayedJob := &queue.Job{
				ID:         job.ID,
				Type:       job.Type,
				UserID:     job.UserID,
				NotBefore:  &notBefore,
				NotAfter:   job.NotAfter,
				Metadata:   job.Metadata,
				CreatedAt:  job.CreatedAt,
				RetryCount: job.RetryCount + 1,
				MaxRetries: job.MaxRetries,
			}

			if ackErr := msg.Ack(); ackErr != nil {
				w.logger.Warn("failed to ack job before re-enqueue", zap.Error(ackErr))
			}

			if enqueueErr := w.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				w.logger.Error("failed to re-enqueue delayed job",
					zap.String("job_id", job.ID.String()),
					zap.Error(enqueueErr),
				)
				return fmt.Errorf("failed to re-enqueue: %w", enqueueErr)
			}

			w.logger.Info("re-enqueued job with delay",
				zap.String("job_id", job.ID.String()),
				zap.Duration("delay", retryDelay),
			)
			return nil
		}
	}

	if job.CanRetry() {
		job.IncrementRetry()
		w.logger.Warn("job failed, will retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err),
		)
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("failed to nack job", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	// Max retries exceeded, send to DLQ
	w.logger.Error("job failed after max retries, sending to DLQ",
		zap.String("job_id", job.ID.String()),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		w.logger.Warn("failed to nack job to DLQ", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}
