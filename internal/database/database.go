// Package database opens the Postgres connections and owns the schema.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"matchday/internal/config"
	"matchday/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// DB is the primary connection.
	DB *gorm.DB
	// ReadDB serves list and search queries; it equals DB when no replica is configured.
	ReadDB *gorm.DB
)

const (
	defaultMaxOpen     = 25
	defaultMaxIdle     = 5
	defaultMaxLifetime = 5 * time.Minute
	slowQuery          = 200 * time.Millisecond
)

// gormLogger sends GORM output to the application slog logger. Record-not-found
// is never an error here; repositories translate it.
type gormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
}

func newGormLogger() *gormLogger {
	return &gormLogger{log: middleware.Logger, level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (l *gormLogger) printf(ctx context.Context, threshold logger.LogLevel, level slog.Level, msg string, args []any) {
	if l.level >= threshold {
		l.log.Log(ctx, level, fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed queries at error, slow ones at warn and the rest only in
// info mode.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		level, msg = slog.LevelError, "query failed"
	case elapsed > slowQuery && l.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case l.level >= logger.Info:
		level, msg = slog.LevelInfo, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log.LogAttrs(ctx, level, msg, attrs...)
}

// dsn holds the parts of a libpq keyword/value connection string.
type dsn struct {
	host, port, user, password, name, sslMode string
}

func (d dsn) String() string {
	if d.sslMode == "" {
		d.sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.host, d.port, d.user, d.password, d.name, d.sslMode)
}

func buildDSN(host, port, user, password, name, sslMode string) string {
	return dsn{host, port, user, password, name, sslMode}.String()
}

func open(target dsn, cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(target.String()), &gorm.Config{Logger: newGormLogger(), TranslateError: true})
	if err != nil {
		return nil, err
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// Connect opens the primary. Schema changes are left to ApplySchema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := open(dsn{cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode}, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect primary: %w", err)
	}
	middleware.Logger.Info("Database connected", slog.String("host", cfg.DBHost))
	DB = db
	return db, nil
}

// ConnectRead opens the replica named by DB_READ_HOST, or falls back to primary.
func ConnectRead(cfg *config.Config, primary *gorm.DB) (*gorm.DB, error) {
	if cfg.DBReadHost == "" {
		ReadDB = primary
		return primary, nil
	}
	db, err := open(dsn{cfg.DBReadHost, cfg.DBReadPort, cfg.DBReadUser, cfg.DBReadPassword, cfg.DBName, cfg.DBSSLMode}, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect read replica: %w", err)
	}
	middleware.Logger.Info("Read replica connected", slog.String("host", cfg.DBReadHost))
	ReadDB = db
	return db, nil
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(positiveOr(cfg.DBMaxOpenConns, defaultMaxOpen))
	sqlDB.SetMaxIdleConns(positiveOr(cfg.DBMaxIdleConns, defaultMaxIdle))
	sqlDB.SetConnMaxLifetime(positiveOr(time.Duration(cfg.DBConnMaxLifetimeMinutes)*time.Minute, defaultMaxLifetime))
	return nil
}
