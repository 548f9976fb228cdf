package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	CreateTopic(ctx context.Context, req CreateTopicRequest) (*Topic, error)
	GetTopic(ctx context.Context, id uint64) (*Topic, error)
	GetChannelTopics(ctx context.Context, channelID uint64) ([]*Topic, error)
	GetChannelTopicCount(ctx context.Context, channelID uint64) (int64, error)
	CloseIfExpired(ctx context.Context, id uint64) (*Topic, error)
	CloseExpired(ctx context.Context, limit int) (int, error)
}

type CreateTopicRequest struct {
	ChannelID    uint64    `json:"channel_id"`
	ContentRef   string    `json:"content_ref"`
	EndTime      time.Time `json:"end_time"`
	MinValue     int64     `json:"min_value"`
	MaxValue     int64     `json:"max_value"`
	DefaultValue int64     `json:"default_value"`
}

var (
	ErrTopicNotFound     = errors.New("topic_not_found")
	ErrNotChannelOwner   = errors.New("not_channel_owner")
	ErrInvalidEndDate    = errors.New("invalid_end_date")
	ErrInvalidValueRange = errors.New("invalid_value_range")
	ErrTopicNotOpen      = errors.New("topic_not_open")
	ErrTopicExpired      = errors.New("topic_expired")
	ErrTopicStillOpen    = errors.New("topic_still_open")
)
