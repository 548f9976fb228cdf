package domain

import (
	"context"
	"errors"
)

type Service interface {
	CreateChannel(ctx context.Context, req CreateChannelRequest) (*Channel, error)
	GetChannel(ctx context.Context, id uint64) (*Channel, error)
	ListChannels(ctx context.Context, req ListRequest) ([]*Channel, error)
	IsOwner(ctx context.Context, channelID uint64, identity string) (bool, error)
}

type TierInput struct {
	DurationClass string `json:"duration_class"`
	Price         int64  `json:"price"`
}

type CreateChannelRequest struct {
	Name         string      `json:"name"`
	PaymentToken string      `json:"payment_token"`
	Tiers        []TierInput `json:"tiers"`
}

type ListRequest struct {
	AfterID uint64
	Limit   int
}

// MaxTiers bounds the tier list of a channel.
const MaxTiers = 16

var (
	ErrChannelNotFound   = errors.New("channel_not_found")
	ErrInvalidTierConfig = errors.New("invalid_tier_config")
	ErrTierNotFound      = errors.New("tier_not_found")
)
