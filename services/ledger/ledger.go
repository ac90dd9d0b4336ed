// Package ledger abstracts the token ledger that escrowed funds move
// through. The engine never holds balances itself; it instructs the
// ledger to move funds between caller accounts and the custody account.
package ledger

import (
	"context"
	"errors"

	"github.com/openclaims/coverd/models"
)

// Sentinel errors returned by ledger implementations.
var (
	// ErrInsufficientBalance indicates the source account cannot cover the amount
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance indicates the spender's approval does not cover the amount
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrInvalidAmount indicates a non-positive transfer amount
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnavailable indicates the ledger backend could not be reached
	ErrUnavailable = errors.New("ledger unavailable")
)

// Ledger is the token ledger the engine debits and credits against.
// All operations act from the point of view of the custody account:
// TransferFrom pulls previously approved funds from an owner into any
// account, Transfer pushes custody funds out.
type Ledger interface {
	// Allowance returns how much the spender may pull from the owner's account
	Allowance(ctx context.Context, owner, spender models.Address) (int64, error)

	// BalanceOf returns the account's current balance
	BalanceOf(ctx context.Context, account models.Address) (int64, error)

	// TransferFrom moves amount from owner to the destination account,
	// consuming the custody account's allowance
	TransferFrom(ctx context.Context, owner, to models.Address, amount int64) error

	// Transfer moves amount from the custody account to the destination
	Transfer(ctx context.Context, to models.Address, amount int64) error
}
