package main

import (
	"context"
	"fmt"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/pkg/database"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// deps holds what every subcommand needs before doing its own work.
type deps struct {
	cfg *config.Config
	db  *gorm.DB
}

func bootstrap(ctx context.Context, component string) (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	logger.GetLogger().Info("Application starting",
		zap.String("app_name", cfg.App.Name),
		zap.String("component", component),
		zap.String("environment", cfg.App.Environment),
		zap.String("version", constants.AppVersion),
	)

	db, err := database.OpenPostgres(ctx, cfg)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &deps{cfg: cfg, db: db}, nil
}

func (rt *deps) close() {
	if err := database.Close(rt.db); err != nil {
		logger.GetLogger().Warn("Failed to close database", zap.Error(err))
	}
	logger.Sync()
}
