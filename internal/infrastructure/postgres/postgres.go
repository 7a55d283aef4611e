package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"user-registry/internal/infrastructure/config"
	"user-registry/internal/infrastructure/telemetry"
)

// Client wraps gorm.DB for the audit trail database
type Client struct {
	*gorm.DB
	sqlDB  *sql.DB
	tracer trace.Tracer
}

// NewClient opens a pooled GORM connection and pings it
func NewClient(ctx context.Context, cfg config.PostgresConfig, tel *telemetry.Telemetry) (*Client, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm postgres connection: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Successfully connected to Postgres with GORM", nil,
		attribute.String("postgres.dsn", maskDSN(cfg.DSN)),
		attribute.Int("postgres.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("postgres.max_idle_conns", cfg.MaxIdleConns),
	)

	return &Client{
		DB:     gormDB,
		sqlDB:  sqlDB,
		tracer: tel.Tracer,
	}, nil
}

// HealthCheck pings the database
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "postgres.health_check")
	defer span.End()

	if err := c.sqlDB.PingContext(ctx); err != nil {
		span.SetAttributes(attribute.Bool("postgres.healthy", false))
		return fmt.Errorf("postgres health check failed: %w", err)
	}

	span.SetAttributes(attribute.Bool("postgres.healthy", true))
	return nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.sqlDB.Close()
}

// maskDSN hides the password of a URL-style DSN. Key/value DSNs are masked
// entirely.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
