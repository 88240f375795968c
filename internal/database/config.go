package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tracker/internal/config"
	"tracker/internal/models"
	"tracker/internal/utils"
)

// SweepQueryPattern matches the due-set lookup issued on every sweep
const SweepQueryPattern = `FROM "reminders" WHERE due_at >=`

const (
	maxRetries = 5
	retryDelay = 5 * time.Second
)

// Open connects to postgres with retries, tunes the pool and optionally
// migrates. The returned handle is owned by the caller.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dsn, err := cfg.Database.DSN(cfg.Release())
	if err != nil {
		return nil, err
	}

	level := logger.Info
	if cfg.Release() {
		level = logger.Warn
	}

	var db *gorm.DB
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), GormConfig(log, level))
		if err == nil {
			break
		}
		log.Warn("database connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if cfg.Database.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	log.Info("database connection established", zap.Bool("migrated", cfg.Database.AutoMigrate))
	return db, nil
}

// GormConfig is shared by the postgres handle and the sqlite test handles
func GormConfig(log *zap.Logger, level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:  utils.NewGormLogger(log, level, time.Second, SweepQueryPattern),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates the tables the service owns
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Task{},
		&models.Assignment{},
		&models.Profile{},
		&models.Reminder{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
