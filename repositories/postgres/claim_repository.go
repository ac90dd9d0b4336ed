package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/repositories"
	"go.uber.org/zap"
)

// ClaimRegistryRepository implements the repositories.ClaimRegistryRepository interface
type ClaimRegistryRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewClaimRegistryRepository creates a new claim registry repository
func NewClaimRegistryRepository(db *DB, logger *zap.Logger) repositories.ClaimRegistryRepository {
	return &ClaimRegistryRepository{
		db:     db,
		logger: logger,
	}
}

// SetFlag marks the policy as locally claimed (idempotent)
func (r *ClaimRegistryRepository) SetFlag(ctx context.Context, id models.PolicyID, at time.Time) error {
	query := `
		INSERT INTO claim_flags (policy_id, flagged_at)
		VALUES ($1, $2)
		ON CONFLICT (policy_id) DO NOTHING
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to set claim flag: %w", err)
	}

	r.logger.Debug("claim flag set", zap.String("policy_id", id.String()))
	return nil
}

// GetFlag reads the per-policy claim flag
func (r *ClaimRegistryRepository) GetFlag(ctx context.Context, id models.PolicyID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM claim_flags WHERE policy_id = $1)`

	executor := GetExecutor(ctx, r.db)
	var flagged bool
	if err := executor.QueryRowContext(ctx, query, id).Scan(&flagged); err != nil {
		return false, fmt.Errorf("failed to get claim flag: %w", err)
	}

	return flagged, nil
}

// RecordClaimTime upserts the last claim instant for (owner, target)
func (r *ClaimRegistryRepository) RecordClaimTime(ctx context.Context, owner, target models.Address, at time.Time) error {
	query := `
		INSERT INTO claim_times (owner, target, last_claim_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, target)
		DO UPDATE SET last_claim_at = EXCLUDED.last_claim_at
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query, owner, target, at)
	if err != nil {
		return fmt.Errorf("failed to record claim time: %w", err)
	}

	r.logger.Debug("claim time recorded",
		zap.String("owner", owner.String()),
		zap.String("target", target.String()))
	return nil
}

// LastClaimTime reads the last claim instant for (owner, target)
func (r *ClaimRegistryRepository) LastClaimTime(ctx context.Context, owner, target models.Address) (time.Time, bool, error) {
	query := `SELECT last_claim_at FROM claim_times WHERE owner = $1 AND target = $2`

	executor := GetExecutor(ctx, r.db)
	var at time.Time
	err := executor.QueryRowContext(ctx, query, owner, target).Scan(&at)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to get last claim time: %w", err)
	}

	return at, true, nil
}
