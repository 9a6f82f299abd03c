package worker

import (
	"context"
	"time"

	"github.com/Payphone-Digital/account-service/internal/model"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/metrics"
	"github.com/Payphone-Digital/account-service/pkg/queue"
	"gorm.io/datatypes"
)

// FailureRecorder stores jobs that exhausted their attempts.
type FailureRecorder interface {
	Record(ctx context.Context, failure *model.NotificationFailure) error
}

// NewHooks logs every job outcome, counts it in m and keeps an audit row
// for permanently failed jobs.
func NewHooks(failures FailureRecorder, m *metrics.Metrics) queue.Hooks {
	return queue.Hooks{
		OnCompleted: func(ctx context.Context, job *queue.Job, elapsed time.Duration) {
			m.JobOutcome(job.Queue, job.Name, metrics.OutcomeCompleted, elapsed)
			logger.InfoWithContext(ctx, "Job completed").
				String("job_name", job.Name).
				Int("attempts", job.AttemptsMade+1).
				Duration(elapsed).
				Log()
		},
		OnRetry: func(ctx context.Context, job *queue.Job, err error, delay time.Duration) {
			m.JobOutcome(job.Queue, job.Name, metrics.OutcomeRetried, 0)
			logger.WarnWithContext(ctx, "Job failed, retry scheduled").
				String("job_name", job.Name).
				Int("attempts", job.AttemptsMade).
				Int("max_attempts", job.MaxAttempts).
				Any("retry_in", delay.String()).
				Err(err).
				Log()
		},
		OnFailed: func(ctx context.Context, job *queue.Job, err error) {
			m.JobOutcome(job.Queue, job.Name, metrics.OutcomeFailed, 0)
			logger.ErrorWithContext(ctx, "Job failed permanently").
				String("job_name", job.Name).
				Int("attempts", job.AttemptsMade).
				Err(err).
				Log()

			if failures == nil {
				return
			}
			record := &model.NotificationFailure{
				Queue:        job.Queue,
				JobID:        job.ID,
				JobName:      job.Name,
				AttemptsMade: job.AttemptsMade,
				LastError:    err.Error(),
				Payload:      datatypes.JSON(job.Payload),
			}
			if rerr := failures.Record(ctx, record); rerr != nil {
				logger.ErrorWithContext(ctx, "Failed to store dead-letter record").Err(rerr).Log()
			}
		},
		OnStalled: func(ctx context.Context, job *queue.Job) {
			logger.WarnWithContext(ctx, "Stalled job requeued").
				String("job_name", job.Name).
				Int("attempts", job.AttemptsMade).
				Log()
		},
	}
}
