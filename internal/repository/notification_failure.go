package repository

import (
	"context"
	"time"

	"github.com/Payphone-Digital/account-service/internal/model"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationFailureRepository records jobs that exhausted their retries.
type NotificationFailureRepository struct {
	db *gorm.DB
}

func NewNotificationFailureRepository(db *gorm.DB) *NotificationFailureRepository {
	return &NotificationFailureRepository{db: db}
}

// Record stores failure once per job id. A redelivered job that fails
// again only refreshes the attempt count and last error.
func (r *NotificationFailureRepository) Record(ctx context.Context, failure *model.NotificationFailure) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "RecordNotificationFailure")

	start := time.Now()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"attempts_made", "last_error", "updated_at"}),
	}).Create(failure).Error
	duration := time.Since(start)

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to record notification failure").
			String("job_id", failure.JobID).
			Duration(duration).
			Err(err).
			Log()
		return err
	}

	logger.DebugWithContext(ctx, "Notification failure recorded").
		String("job_id", failure.JobID).
		String("job_name", failure.JobName).
		Duration(duration).
		Log()
	return nil
}

// ListByQueue returns the newest failures first.
func (r *NotificationFailureRepository) ListByQueue(ctx context.Context, queue string, limit int) ([]model.NotificationFailure, error) {
	var failures []model.NotificationFailure
	err := r.db.WithContext(ctx).
		Where("queue = ?", queue).
		Order("id DESC").
		Limit(limit).
		Find(&failures).Error
	return failures, err
}
