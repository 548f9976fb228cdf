package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	"github.com/railzwaylabs/cipherpoll/internal/ledger/ledgertest"
	"github.com/railzwaylabs/cipherpoll/internal/payment/domain"
	"github.com/railzwaylabs/cipherpoll/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, *ledger.Executor) {
	ex := ledgertest.New(t, &domain.Balance{})
	return New(Params{
		Ledger: ex,
		Log:    zap.NewNop(),
		Clock:  clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Repo:   repository.Provide(),
	}), ex
}

func TestCredit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "usdc", "Bob", 70)
	require.NoError(t, err)
	bal, err := svc.Credit(ctx, "USDC", "bob", 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal.Amount)

	_, err = svc.Credit(ctx, "usdc", "bob", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.Credit(ctx, " ", "bob", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTransfer(t *testing.T) {
	svc, ex := newService(t)
	ctx := context.Background()
	_, err := svc.Credit(ctx, "USDC", "bob", 100)
	require.NoError(t, err)

	require.NoError(t, ex.Apply(ctx, func(tx *gorm.DB) error {
		return svc.Transfer(ctx, tx, "usdc", "bob", "alice", 60)
	}))

	bob, err := svc.Balance(ctx, "USDC", "bob")
	require.NoError(t, err)
	alice, err := svc.Balance(ctx, "USDC", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bob.Amount)
	assert.Equal(t, uint64(60), alice.Amount)
}

func TestTransfer_InsufficientBalanceRollsBack(t *testing.T) {
	svc, ex := newService(t)
	ctx := context.Background()
	_, err := svc.Credit(ctx, "USDC", "bob", 10)
	require.NoError(t, err)

	err = ex.Apply(ctx, func(tx *gorm.DB) error {
		return svc.Transfer(ctx, tx, "USDC", "bob", "alice", 11)
	})
	assert.True(t, errors.Is(err, domain.ErrInsufficientBalance))

	bob, err := svc.Balance(ctx, "USDC", "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bob.Amount)
}
