// Package database opens the PostgreSQL connection and prepares the schema.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"quad/internal/config"
	"quad/internal/messagecrypt"
	"quad/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// DSN builds a postgres:// URL from cfg. Credentials are escaped.
func DSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     cfg.DBHost + ":" + cfg.DBPort,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// Connect opens PostgreSQL, retrying while the server starts up, then runs Prepare.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         NewGormLogger(middleware.Logger),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	wait := connectBackoff
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err = gorm.Open(postgres.Open(DSN(cfg)), gcfg)
		if err == nil {
			err = ping(db)
		}
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
		}
		middleware.Logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		time.Sleep(wait)
		wait *= 2
	}

	middleware.Logger.Info("database connected", slog.String("host", cfg.DBHost), slog.String("name", cfg.DBName))
	if err := Prepare(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Prepare installs message encryption, migrates the schema outside
// production and applies pool limits.
func Prepare(db *gorm.DB, cfg *config.Config) error {
	c, err := messagecrypt.NewCipher(cfg.MessageEncryptionKey)
	if err != nil {
		return fmt.Errorf("init message encryption: %w", err)
	}
	if err := db.Use(messagecrypt.NewPlugin(c, middleware.Logger)); err != nil {
		return fmt.Errorf("register message encryption: %w", err)
	}

	if !cfg.IsProduction() {
		if err := db.AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return configurePool(db, cfg)
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(positiveOr(cfg.DBMaxOpenConns, 25))
	sqlDB.SetMaxIdleConns(positiveOr(cfg.DBMaxIdleConns, 5))
	sqlDB.SetConnMaxLifetime(time.Duration(positiveOr(cfg.DBConnMaxLifetimeMinutes, 5)) * time.Minute)
	return nil
}
