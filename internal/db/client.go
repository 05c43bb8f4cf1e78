// Package db persists investigation results and serves the local scam
// report corpus.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/config"
)

// Client wraps the PostgreSQL connection pool.
type Client struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewClient opens a pooled connection and verifies it with a ping.
func NewClient(cfg config.PostgresConfig, logger *zap.Logger) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database client initialized",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)
	return &Client{db: db, logger: logger}, nil
}

// NewClientFromDB wraps an existing connection, used by tests.
func NewClientFromDB(db *sqlx.DB, logger *zap.Logger) *Client {
	return &Client{db: db, logger: logger}
}

// DB exposes the underlying pool for health checks.
func (c *Client) DB() *sqlx.DB { return c.db }

// Close releases the connection pool.
func (c *Client) Close() error { return c.db.Close() }
