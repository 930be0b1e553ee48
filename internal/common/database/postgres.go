// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"safety-rating/internal/common/config"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// BeginSnapshot opens a read-only REPEATABLE READ transaction. Every query
// issued on it observes the same point in time.
func (c *PostgresClient) BeginSnapshot(ctx context.Context) (*sql.Tx, error) {
	return c.DB.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
}

// Migrate applies every pending goose migration found in fsys.
func (c *PostgresClient) Migrate(ctx context.Context, fsys fs.FS) ([]string, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, c.DB, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	applied := make([]string, 0, len(results))
	for _, r := range results {
		if r.Source != nil {
			applied = append(applied, r.Source.Path)
		}
	}
	return applied, nil
}
