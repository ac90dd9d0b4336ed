package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/openclaims/coverd/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Policies table: one row per policy, never deleted.
		-- Only status and compensated change after insert.
		CREATE TABLE IF NOT EXISTS policies (
			id CHAR(64) PRIMARY KEY,
			owner VARCHAR(128) NOT NULL,
			target VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			deadline TIMESTAMPTZ NOT NULL,
			coverage BIGINT NOT NULL CHECK (coverage > 0),
			fee_paid BIGINT NOT NULL CHECK (fee_paid >= 0),
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			compensated BOOLEAN NOT NULL DEFAULT false
		);

		-- Local claim registry: per-policy flag
		CREATE TABLE IF NOT EXISTS claim_flags (
			policy_id CHAR(64) PRIMARY KEY REFERENCES policies(id),
			flagged_at TIMESTAMPTZ NOT NULL
		);

		-- Local claim registry: last claim instant per (owner, target)
		CREATE TABLE IF NOT EXISTS claim_times (
			owner VARCHAR(128) NOT NULL,
			target VARCHAR(128) NOT NULL,
			last_claim_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (owner, target)
		);

		-- Lifecycle events for external auditing/indexing
		CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			kind VARCHAR(50) NOT NULL,
			policy_id CHAR(64) NOT NULL,
			payload JSONB NOT NULL,
			request_id VARCHAR(255),
			emitted_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_policies_owner ON policies(owner);
		CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status);
		CREATE INDEX IF NOT EXISTS idx_policies_deadline ON policies(deadline);

		CREATE INDEX IF NOT EXISTS idx_events_policy_id ON events(policy_id);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
		CREATE INDEX IF NOT EXISTS idx_events_emitted_at ON events(emitted_at);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
