package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Service is the payment-token collaborator. Transfer runs inside the
// caller's transaction so a failed transfer rolls the caller back too.
type Service interface {
	Credit(ctx context.Context, token, holder string, amount uint64) (*Balance, error)
	Balance(ctx context.Context, token, holder string) (*Balance, error)
	Transfer(ctx context.Context, tx *gorm.DB, token, from, to string, amount uint64) error
}

var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidToken        = errors.New("invalid_token")
)
