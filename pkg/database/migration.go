package database

import (
	"context"
	"fmt"

	"github.com/Payphone-Digital/account-service/internal/model"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"gorm.io/gorm"
)

// partialIndexes keep lookups on one-time codes cheap without indexing
// the many rows where the code is null.
var partialIndexes = []struct {
	name  string
	table string
	expr  string
	where string
}{
	{"idx_users_password_reset_code_active", "users", "password_reset_code, password_reset_code_expires_at", "password_reset_code IS NOT NULL"},
	{"idx_users_email_validation_token_pending", "users", "email_validation_token", "email_validation_token IS NOT NULL"},
	{"idx_users_last_active", "users", "last_active DESC", "deleted_at IS NULL"},
}

// AutoMigrate runs database migrations for all models and creates the
// partial indexes.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)

	if err := db.AutoMigrate(
		&model.User{},
		&model.NotificationFailure{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	concurrently := ""
	if db.Dialector.Name() == "postgres" {
		concurrently = "CONCURRENTLY "
	}

	for _, idx := range partialIndexes {
		stmt := fmt.Sprintf("CREATE INDEX %sIF NOT EXISTS %s ON %s (%s) WHERE %s",
			concurrently, idx.name, idx.table, idx.expr, idx.where)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	logger.InfoWithContext(ctx, "Database migrated").
		Int("partial_indexes", len(partialIndexes)).
		Log()
	return nil
}
