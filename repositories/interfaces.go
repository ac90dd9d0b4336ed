package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/openclaims/coverd/models"
)

// ErrNotFound is returned by repositories when no record matches.
// Services translate it into their own not-found semantics.
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Repository calls made with the returned context join the transaction.
	// Automatically commits if function succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// PolicyRepository is the policy store: one record per identifier,
// insert-once, updated in place only for the terminal transition fields
// (status, compensated). Records are never deleted.
type PolicyRepository interface {
	// Create inserts a new policy record
	Create(ctx context.Context, policy *models.Policy) error

	// GetByID retrieves a policy by id; returns ErrNotFound when missing
	GetByID(ctx context.Context, id models.PolicyID) (*models.Policy, error)

	// Exists reports whether a record exists for the id
	Exists(ctx context.Context, id models.PolicyID) (bool, error)

	// ListByOwner retrieves an owner's policies with pagination,
	// newest first
	ListByOwner(ctx context.Context, owner models.Address, limit, offset int) ([]*models.Policy, error)

	// Resolve flips status from active to resolved. Returns ErrNotFound
	// when no active record matches, so the transition happens at most once.
	Resolve(ctx context.Context, id models.PolicyID) error

	// SetCompensated records the payout outcome on a resolved policy
	SetCompensated(ctx context.Context, id models.PolicyID, compensated bool) error
}

// ClaimRegistryRepository is the local fallback claim record: a per-policy
// flag plus a per-(owner, target) last-claim timestamp. Written only through
// claim registration, read only by the verification path.
type ClaimRegistryRepository interface {
	// SetFlag marks the policy as locally claimed (idempotent)
	SetFlag(ctx context.Context, id models.PolicyID, at time.Time) error

	// GetFlag reads the per-policy claim flag
	GetFlag(ctx context.Context, id models.PolicyID) (bool, error)

	// RecordClaimTime upserts the last claim instant for (owner, target)
	RecordClaimTime(ctx context.Context, owner, target models.Address, at time.Time) error

	// LastClaimTime reads the last claim instant for (owner, target);
	// ok is false when no claim was ever recorded
	LastClaimTime(ctx context.Context, owner, target models.Address) (at time.Time, ok bool, err error)
}

// EventRepository persists lifecycle events for external auditing/indexing
type EventRepository interface {
	// Insert inserts a new event
	Insert(ctx context.Context, event *models.Event) error

	// ListByPolicy retrieves events for a policy with pagination,
	// oldest first
	ListByPolicy(ctx context.Context, id models.PolicyID, limit, offset int) ([]*models.Event, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Policies      PolicyRepository
	ClaimRegistry ClaimRegistryRepository
	Events        EventRepository
}
