package ledger

import (
	"context"
	"testing"

	"github.com/openclaims/coverd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	custody = models.Address("0xc0ffee")
	alice   = models.Address("0xa11ce")
	bob     = models.Address("0xb0b")
)

func newTestLedger() *InMemory {
	return NewInMemory(custody, zap.NewNop())
}

func TestInMemoryTransferFrom(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds and consumes allowance", func(t *testing.T) {
		l := newTestLedger()
		l.Mint(alice, 2_000_000)
		l.Approve(alice, custody, 1_500_000)

		require.NoError(t, l.TransferFrom(ctx, alice, custody, 1_200_000))

		balance, err := l.BalanceOf(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, int64(800_000), balance)

		balance, err = l.BalanceOf(ctx, custody)
		require.NoError(t, err)
		assert.Equal(t, int64(1_200_000), balance)

		allowance, err := l.Allowance(ctx, alice, custody)
		require.NoError(t, err)
		assert.Equal(t, int64(300_000), allowance)
	})

	t.Run("rejects insufficient allowance", func(t *testing.T) {
		l := newTestLedger()
		l.Mint(alice, 2_000_000)
		l.Approve(alice, custody, 100)

		err := l.TransferFrom(ctx, alice, custody, 1_000)
		assert.ErrorIs(t, err, ErrInsufficientAllowance)
	})

	t.Run("rejects insufficient balance", func(t *testing.T) {
		l := newTestLedger()
		l.Mint(alice, 100)
		l.Approve(alice, custody, 1_000)

		err := l.TransferFrom(ctx, alice, custody, 1_000)
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		// Allowance untouched on failure
		allowance, err := l.Allowance(ctx, alice, custody)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000), allowance)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		l := newTestLedger()
		assert.ErrorIs(t, l.TransferFrom(ctx, alice, custody, 0), ErrInvalidAmount)
		assert.ErrorIs(t, l.TransferFrom(ctx, alice, custody, -1), ErrInvalidAmount)
	})
}

func TestInMemoryTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("pays out from custody", func(t *testing.T) {
		l := newTestLedger()
		l.Mint(custody, 1_000_000)

		require.NoError(t, l.Transfer(ctx, bob, 400_000))

		balance, err := l.BalanceOf(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, int64(400_000), balance)

		balance, err = l.BalanceOf(ctx, custody)
		require.NoError(t, err)
		assert.Equal(t, int64(600_000), balance)
	})

	t.Run("rejects overdraw", func(t *testing.T) {
		l := newTestLedger()
		l.Mint(custody, 100)
		assert.ErrorIs(t, l.Transfer(ctx, bob, 200), ErrInsufficientBalance)
	})

	t.Run("unknown accounts have zero balance and allowance", func(t *testing.T) {
		l := newTestLedger()

		balance, err := l.BalanceOf(ctx, "0xdead")
		require.NoError(t, err)
		assert.Zero(t, balance)

		allowance, err := l.Allowance(ctx, "0xdead", custody)
		require.NoError(t, err)
		assert.Zero(t, allowance)
	})
}
