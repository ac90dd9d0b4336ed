// Package lifecycle orchestrates the policy state machine: creation with
// upfront escrow, deadline-gated verification with two-tier claim
// detection, self-service claim registration, and administrative
// emergency recovery.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openclaims/coverd/config"
	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/repositories"
	"github.com/openclaims/coverd/services"
	"github.com/openclaims/coverd/services/feecalc"
	"github.com/openclaims/coverd/services/ledger"
	"github.com/openclaims/coverd/services/oracle"
	"go.uber.org/zap"
)

// ClaimProber answers whether a target attests that a user has claimed.
// A failed or unsupported probe yields Supported=false, never an error.
type ClaimProber interface {
	Lookup(ctx context.Context, target, user models.Address) oracle.Result
}

// EventSink receives lifecycle events; failures are logged, never surfaced
type EventSink interface {
	RecordPolicyCreated(policy *models.Policy, requestID string) error
	RecordPolicyResolved(id models.PolicyID, compensated bool, requestID string) error
	RecordClaimRegistered(id models.PolicyID, owner, target models.Address, at time.Time, requestID string) error
}

// Service is the policy lifecycle engine. Each policy identifier is
// protected by its own mutual-exclusion scope: operations on the same
// id serialize, operations on distinct ids run in parallel. Ledger
// calls happen inside the database transaction, so a failed transfer
// rolls back the whole operation.
type Service struct {
	policyRepo repositories.PolicyRepository
	claimRepo  repositories.ClaimRegistryRepository
	txManager  repositories.TransactionManager
	ledger     ledger.Ledger
	prober     ClaimProber
	events     EventSink
	logger     *zap.Logger

	coverageWindow time.Duration
	gracePeriod    time.Duration
	custody        models.Address

	locks *keyMutex
	now   func() time.Time

	mu     sync.RWMutex // guards admin and paused
	admin  models.Address
	paused bool
}

// NewService creates the lifecycle engine from its collaborators
func NewService(
	policyRepo repositories.PolicyRepository,
	claimRepo repositories.ClaimRegistryRepository,
	txManager repositories.TransactionManager,
	tokenLedger ledger.Ledger,
	prober ClaimProber,
	sink EventSink,
	cfg config.EngineConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		policyRepo:     policyRepo,
		claimRepo:      claimRepo,
		txManager:      txManager,
		ledger:         tokenLedger,
		prober:         prober,
		events:         sink,
		logger:         logger,
		coverageWindow: cfg.CoverageWindow,
		gracePeriod:    cfg.GracePeriod,
		custody:        models.NormalizeAddress(cfg.CustodyAddress),
		locks:          newKeyMutex(),
		now:            time.Now,
		admin:          models.NormalizeAddress(cfg.AdminAddress),
	}
}

// WithClock overrides the engine's clock. Test helper.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreatePolicy validates the request, escrows coverage plus fee from the
// owner into custody, and stores the new record. The deadline is always
// now + the configured coverage window. The record insert and the ledger
// debit commit or roll back together.
func (s *Service) CreatePolicy(ctx context.Context, owner, target models.Address, coverage int64) (*models.Policy, error) {
	if s.isPaused() {
		return nil, services.ErrEnginePaused
	}

	owner = models.NormalizeAddress(owner.String())
	target = models.NormalizeAddress(target.String())

	if target.IsZero() {
		return nil, services.ErrInvalidTarget
	}
	if coverage <= 0 {
		return nil, services.ErrInvalidCoverage
	}

	createdAt := s.now()
	deadline := createdAt.Add(s.coverageWindow)
	if !deadline.After(createdAt) {
		return nil, services.ErrInvalidDeadline
	}

	fee := feecalc.Fee(coverage)
	total := coverage + fee

	policy := models.NewPolicy(owner, target, coverage, fee, createdAt, deadline)

	s.locks.Lock(policy.ID.String())
	defer s.locks.Unlock(policy.ID.String())

	allowance, err := s.ledger.Allowance(ctx, owner, s.custody)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeExternal, "ledger unavailable", err)
	}
	if allowance < total {
		// Fresh instance so the shared sentinel's detail map stays empty
		return nil, services.NewDomainError(services.ErrorTypeAllowance, "ledger allowance below required escrow", nil).
			WithDetail("required", total).
			WithDetail("allowance", allowance)
	}

	err = s.txManager.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		if err := s.policyRepo.Create(txCtx, policy); err != nil {
			return services.NewDomainError(services.ErrorTypeInternal, "database error", err)
		}

		// Record written before the external debit; a failed debit
		// rolls the insert back with the transaction.
		if err := s.ledger.TransferFrom(ctx, owner, s.custody, total); err != nil {
			return s.mapLedgerError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("policy created",
		zap.String("id", policy.ID.String()),
		zap.String("owner", owner.String()),
		zap.String("target", target.String()),
		zap.Int64("coverage", coverage),
		zap.Int64("fee", fee))

	s.emit(func() error {
		return s.events.RecordPolicyCreated(policy, requestIDFrom(ctx))
	})

	return policy, nil
}

// VerifyAndPayout resolves an owner's policy after the deadline. The
// status flip is committed before the claim lookup and transfer run,
// so a concurrent second call fails on the already-resolved guard.
// No claim detected pays the full coverage; a detected claim refunds
// only the fee, the coverage stays in custody.
func (s *Service) VerifyAndPayout(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error) {
	if s.isPaused() {
		return nil, services.ErrEnginePaused
	}

	caller = models.NormalizeAddress(caller.String())

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	policy, err := s.getOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if !policy.IsActive() {
		return nil, services.ErrPolicyAlreadyResolved
	}

	now := s.now()
	if !now.After(policy.Deadline) {
		return nil, services.NewDomainError(services.ErrorTypePrecondition, "deadline has not passed", nil).
			WithDetail("deadline", policy.Deadline).
			WithDetail("now", now)
	}

	var compensated bool
	err = s.txManager.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		// Resolve first. The conditional UPDATE makes the transition
		// happen at most once even across racing transactions.
		if err := s.policyRepo.Resolve(txCtx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return services.ErrPolicyAlreadyResolved
			}
			return services.NewDomainError(services.ErrorTypeInternal, "database error", err)
		}

		claimed, err := s.detectClaim(txCtx, policy)
		if err != nil {
			return err
		}

		compensated = !claimed
		if err := s.policyRepo.SetCompensated(txCtx, id, compensated); err != nil {
			return services.NewDomainError(services.ErrorTypeInternal, "database error", err)
		}

		payout := policy.Coverage
		if claimed {
			payout = policy.FeePaid
		}
		if err := s.ledger.Transfer(ctx, policy.Owner, payout); err != nil {
			return s.mapLedgerError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	policy.Status = models.PolicyStatusResolved
	policy.Compensated = compensated

	s.logger.Info("policy resolved",
		zap.String("id", id.String()),
		zap.Bool("compensated", compensated))

	s.emit(func() error {
		return s.events.RecordPolicyResolved(id, compensated, requestIDFrom(ctx))
	})

	return policy, nil
}

// RegisterClaim records a self-reported claim for an active policy.
// Used when the target offers no attestation interface. No funds move,
// and the operation stays available while the engine is paused.
func (s *Service) RegisterClaim(ctx context.Context, caller models.Address, id models.PolicyID) error {
	caller = models.NormalizeAddress(caller.String())

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	policy, err := s.getOwned(ctx, caller, id)
	if err != nil {
		return err
	}

	if !policy.IsActive() {
		return services.ErrPolicyAlreadyResolved
	}

	at := s.now()
	err = s.txManager.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		if err := s.claimRepo.SetFlag(txCtx, id, at); err != nil {
			return services.NewDomainError(services.ErrorTypeInternal, "database error", err)
		}
		if err := s.claimRepo.RecordClaimTime(txCtx, policy.Owner, policy.Target, at); err != nil {
			return services.NewDomainError(services.ErrorTypeInternal, "database error", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("claim registered",
		zap.String("id", id.String()),
		zap.String("owner", policy.Owner.String()))

	s.emit(func() error {
		return s.events.RecordClaimRegistered(id, policy.Owner, policy.Target, at, requestIDFrom(ctx))
	})

	return nil
}

// EmergencyRecover sweeps an abandoned policy's full escrow to the
// administrator. Allowed only to the current admin and only once the
// grace period past the deadline has elapsed. Recovery is recorded as
// a resolution with compensated=false.
func (s *Service) EmergencyRecover(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error) {
	caller = models.NormalizeAddress(caller.String())

	if !s.isAdmin(caller) {
		return nil, services.ErrAdminOnly
	}

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	policy, err := s.policyRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPolicyNotFound
		}
		return nil, services.NewDomainError(services.ErrorTypeInternal, "database error", err)
	}

	if !policy.IsActive() {
		return nil, services.ErrPolicyAlreadyResolved
	}

	now := s.now()
	if !now.After(policy.Deadline.Add(s.gracePeriod)) {
		return nil, services.NewDomainError(services.ErrorTypePrecondition, "deadline has not passed", nil).
			WithDetail("recoverable_at", policy.Deadline.Add(s.gracePeriod)).
			WithDetail("now", now)
	}

	admin := s.currentAdmin()
	err = s.txManager.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		if err := s.policyRepo.Resolve(txCtx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return services.ErrPolicyAlreadyResolved
			}
			return services.NewDomainError(services.ErrorTypeInternal, "database error", err)
		}
		if err := s.policyRepo.SetCompensated(txCtx, id, false); err != nil {
			return services.NewDomainError(services.ErrorTypeInternal, "database error", err)
		}
		if err := s.ledger.Transfer(ctx, admin, policy.Escrow()); err != nil {
			return s.mapLedgerError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	policy.Status = models.PolicyStatusResolved
	policy.Compensated = false

	s.logger.Warn("policy swept by emergency recovery",
		zap.String("id", id.String()),
		zap.Int64("escrow", policy.Escrow()))

	s.emit(func() error {
		return s.events.RecordPolicyResolved(id, false, requestIDFrom(ctx))
	})

	return policy, nil
}

// GetPolicy returns the caller's policy. Missing id and foreign
// ownership are indistinguishable.
func (s *Service) GetPolicy(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error) {
	return s.getOwned(ctx, models.NormalizeAddress(caller.String()), id)
}

// ListPolicies returns the caller's policies, newest first
func (s *Service) ListPolicies(ctx context.Context, caller models.Address, limit, offset int) ([]*models.Policy, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	policies, err := s.policyRepo.ListByOwner(ctx, models.NormalizeAddress(caller.String()), limit, offset)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal, "database error", err)
	}
	return policies, nil
}

// Pause disables creation and verification. Queries and claim
// registration remain available. Admin only.
func (s *Service) Pause(caller models.Address) error {
	if !s.isAdmin(models.NormalizeAddress(caller.String())) {
		return services.ErrAdminOnly
	}

	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()

	s.logger.Warn("engine paused")
	return nil
}

// Unpause re-enables creation and verification. Admin only.
func (s *Service) Unpause(caller models.Address) error {
	if !s.isAdmin(models.NormalizeAddress(caller.String())) {
		return services.ErrAdminOnly
	}

	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()

	s.logger.Info("engine unpaused")
	return nil
}

// IsPaused reports the pause state
func (s *Service) IsPaused() bool {
	return s.isPaused()
}

// TransferAdmin hands the administrative identity to a new address.
// Admin only; the null identity is rejected.
func (s *Service) TransferAdmin(caller, newAdmin models.Address) error {
	caller = models.NormalizeAddress(caller.String())
	newAdmin = models.NormalizeAddress(newAdmin.String())

	if !s.isAdmin(caller) {
		return services.ErrAdminOnly
	}
	if newAdmin.IsZero() {
		return services.ErrInvalidAdmin
	}

	s.mu.Lock()
	s.admin = newAdmin
	s.mu.Unlock()

	s.logger.Warn("administrator transferred",
		zap.String("from", caller.String()),
		zap.String("to", newAdmin.String()))
	return nil
}

// Admin returns the current administrative identity
func (s *Service) Admin() models.Address {
	return s.currentAdmin()
}

// detectClaim runs the two-tier claim lookup: the target's attestation
// source is authoritative when it answers; otherwise the local registry
// decides, counting a claim when the per-policy flag is set or the last
// (owner, target) claim instant falls within the coverage window.
func (s *Service) detectClaim(ctx context.Context, policy *models.Policy) (bool, error) {
	result := s.prober.Lookup(ctx, policy.Target, policy.Owner)
	if result.Supported {
		return result.Claimed, nil
	}

	flagged, err := s.claimRepo.GetFlag(ctx, policy.ID)
	if err != nil {
		return false, services.NewDomainError(services.ErrorTypeInternal, "database error", err)
	}
	if flagged {
		return true, nil
	}

	at, ok, err := s.claimRepo.LastClaimTime(ctx, policy.Owner, policy.Target)
	if err != nil {
		return false, services.NewDomainError(services.ErrorTypeInternal, "database error", err)
	}
	if !ok {
		return false, nil
	}

	inWindow := !at.Before(policy.CreatedAt) && !at.After(policy.Deadline)
	return inWindow, nil
}

// getOwned fetches a policy, folding both "no such id" and "not the
// caller's policy" into the same not-found error so callers cannot
// probe for other users' policies.
func (s *Service) getOwned(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error) {
	policy, err := s.policyRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPolicyNotFound
		}
		return nil, services.NewDomainError(services.ErrorTypeInternal, "database error", err)
	}
	if policy.Owner != caller {
		return nil, services.ErrPolicyNotFound
	}
	return policy, nil
}

// mapLedgerError translates ledger sentinels into domain errors
func (s *Service) mapLedgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientAllowance):
		return services.NewDomainError(services.ErrorTypeAllowance, "ledger allowance below required escrow", err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return services.NewDomainError(services.ErrorTypeExternal, "ledger transfer failed", err)
	case errors.Is(err, ledger.ErrUnavailable):
		return services.NewDomainError(services.ErrorTypeExternal, "ledger unavailable", err)
	default:
		return services.NewDomainError(services.ErrorTypeExternal, "ledger transfer failed", err)
	}
}

// emit records an event, logging failures instead of surfacing them
func (s *Service) emit(fn func() error) {
	if s.events == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Warn("failed to record lifecycle event", zap.Error(err))
	}
}

func (s *Service) isPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *Service) isAdmin(caller models.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !caller.IsZero() && caller == s.admin
}

func (s *Service) currentAdmin() models.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}
