package ledger

import (
	"context"
	"sync"

	"github.com/openclaims/coverd/models"
	"go.uber.org/zap"
)

// InMemory is a process-local ledger for development and tests.
// It holds balances and allowances in maps guarded by a mutex and is
// bound to a custody address at construction, mirroring the remote
// ledger's view where the service acts as the custody account.
type InMemory struct {
	mu         sync.Mutex
	balances   map[models.Address]int64
	allowances map[models.Address]map[models.Address]int64
	custody    models.Address
	logger     *zap.Logger
}

// NewInMemory creates an empty in-memory ledger acting as the given custody account
func NewInMemory(custody models.Address, logger *zap.Logger) *InMemory {
	return &InMemory{
		balances:   make(map[models.Address]int64),
		allowances: make(map[models.Address]map[models.Address]int64),
		custody:    custody,
		logger:     logger,
	}
}

// Mint credits an account out of thin air. Test and development helper.
func (l *InMemory) Mint(account models.Address, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Approve sets the amount a spender may pull from the owner's account
func (l *InMemory) Approve(owner, spender models.Address, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[models.Address]int64)
	}
	l.allowances[owner][spender] = amount
}

// Allowance returns how much the spender may pull from the owner's account
func (l *InMemory) Allowance(ctx context.Context, owner, spender models.Address) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[owner][spender], nil
}

// BalanceOf returns the account's current balance
func (l *InMemory) BalanceOf(ctx context.Context, account models.Address) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// TransferFrom moves amount from owner to the destination, consuming
// the custody account's allowance on the owner
func (l *InMemory) TransferFrom(ctx context.Context, owner, to models.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowances[owner][l.custody] < amount {
		return ErrInsufficientAllowance
	}
	if l.balances[owner] < amount {
		return ErrInsufficientBalance
	}

	l.allowances[owner][l.custody] -= amount
	l.balances[owner] -= amount
	l.balances[to] += amount

	l.logger.Debug("ledger transfer_from",
		zap.String("owner", owner.String()),
		zap.String("to", to.String()),
		zap.Int64("amount", amount))
	return nil
}

// Transfer moves amount from the custody account to the destination
func (l *InMemory) Transfer(ctx context.Context, to models.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[l.custody] < amount {
		return ErrInsufficientBalance
	}

	l.balances[l.custody] -= amount
	l.balances[to] += amount

	l.logger.Debug("ledger transfer",
		zap.String("to", to.String()),
		zap.Int64("amount", amount))
	return nil
}
