package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/repositories"
	"go.uber.org/zap"
)

// PolicyRepository implements the repositories.PolicyRepository interface
type PolicyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new policy record
func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policies (id, owner, target, created_at, deadline, coverage, fee_paid, status, compensated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		policy.ID,
		policy.Owner,
		policy.Target,
		policy.CreatedAt,
		policy.Deadline,
		policy.Coverage,
		policy.FeePaid,
		policy.Status,
		policy.Compensated,
	)

	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	r.logger.Debug("policy created", zap.String("id", policy.ID.String()))
	return nil
}

// GetByID retrieves a policy by id
func (r *PolicyRepository) GetByID(ctx context.Context, id models.PolicyID) (*models.Policy, error) {
	query := `
		SELECT id, owner, target, created_at, deadline, coverage, fee_paid, status, compensated
		FROM policies
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	policy := &models.Policy{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&policy.ID,
		&policy.Owner,
		&policy.Target,
		&policy.CreatedAt,
		&policy.Deadline,
		&policy.Coverage,
		&policy.FeePaid,
		&policy.Status,
		&policy.Compensated,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return policy, nil
}

// Exists reports whether a record exists for the id
func (r *PolicyRepository) Exists(ctx context.Context, id models.PolicyID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM policies WHERE id = $1)`

	executor := GetExecutor(ctx, r.db)
	var exists bool
	if err := executor.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check policy existence: %w", err)
	}

	return exists, nil
}

// ListByOwner retrieves an owner's policies with pagination, newest first
func (r *PolicyRepository) ListByOwner(ctx context.Context, owner models.Address, limit, offset int) ([]*models.Policy, error) {
	query := `
		SELECT id, owner, target, created_at, deadline, coverage, fee_paid, status, compensated
		FROM policies
		WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.Policy
	for rows.Next() {
		policy := &models.Policy{}
		err := rows.Scan(
			&policy.ID,
			&policy.Owner,
			&policy.Target,
			&policy.CreatedAt,
			&policy.Deadline,
			&policy.Coverage,
			&policy.FeePaid,
			&policy.Status,
			&policy.Compensated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy rows: %w", err)
	}

	return policies, nil
}

// Resolve flips status from active to resolved. The WHERE clause enforces
// the one-way transition: a second call affects zero rows.
func (r *PolicyRepository) Resolve(ctx context.Context, id models.PolicyID) error {
	query := `
		UPDATE policies
		SET status = $2
		WHERE id = $1 AND status = $3
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, models.PolicyStatusResolved, models.PolicyStatusActive)
	if err != nil {
		return fmt.Errorf("failed to resolve policy: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("policy resolved", zap.String("id", id.String()))
	return nil
}

// SetCompensated records the payout outcome on a resolved policy
func (r *PolicyRepository) SetCompensated(ctx context.Context, id models.PolicyID, compensated bool) error {
	query := `
		UPDATE policies
		SET compensated = $2
		WHERE id = $1 AND status = $3
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, compensated, models.PolicyStatusResolved)
	if err != nil {
		return fmt.Errorf("failed to set compensated: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("policy compensation recorded",
		zap.String("id", id.String()),
		zap.Bool("compensated", compensated))
	return nil
}
