package domain

import (
	"context"
	"errors"
)

type Service interface {
	Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error)
	IsActive(ctx context.Context, subscriber string, channelID uint64) (bool, error)
	GetSubscription(ctx context.Context, subscriber string, channelID uint64) (*Subscription, error)
	ListSubscriptions(ctx context.Context, channelID uint64) ([]*Subscription, error)
}

type SubscribeRequest struct {
	ChannelID    uint64 `json:"channel_id"`
	TierIndex    int    `json:"tier_index"`
	PaymentToken string `json:"payment_token"`
	Amount       uint64 `json:"amount"`
}

var (
	ErrNoSubscription          = errors.New("no_subscription")
	ErrInsufficientPayment     = errors.New("insufficient_payment")
	ErrUnsupportedPaymentToken = errors.New("unsupported_payment_token")
)
