package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/cenkalti/backoff/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const connectAttempts = 5

// OpenPostgres connects to the configured PostgreSQL database.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	dialector := postgres.New(postgres.Config{DSN: cfg.DatabaseConnectionString()})
	return Open(ctx, dialector, cfg.Database, cfg.App.Environment)
}

// Open connects through dialector, retrying with exponential backoff while
// the database is still coming up, and applies the pool settings.
func Open(ctx context.Context, dialector gorm.Dialector, cfg config.DatabaseConfig, environment string) (*gorm.DB, error) {
	var dbLogger gormLogger.Interface
	switch environment {
	case "production":
		dbLogger = gormLogger.Default.LogMode(gormLogger.Silent)
	case "test":
		dbLogger = gormLogger.Default.LogMode(gormLogger.Silent)
	default:
		dbLogger = gormLogger.Default.LogMode(gormLogger.Warn)
	}

	gormConfig := &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	start := time.Now()
	attempt := 0
	db, err := backoff.Retry(ctx, func() (*gorm.DB, error) {
		attempt++
		db, err := gorm.Open(dialector, gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return db, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(connectAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnWithContext(ctx, "Database not reachable, retrying").
				Int("attempt", attempt).
				Any("retry_in", next.String()).
				Err(err).
				Log()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	logger.InfoWithContext(ctx, "Database connected").
		String("dialect", db.Dialector.Name()).
		String("database", cfg.Name).
		Int("attempts", attempt).
		Int("max_open_conns", cfg.MaxOpenConns).
		Duration(time.Since(start)).
		Log()
	return db, nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance for closing: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
