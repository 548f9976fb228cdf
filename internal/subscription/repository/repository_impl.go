package repository

import (
	"context"

	"github.com/railzwaylabs/cipherpoll/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, subscriber string, channelID uint64) (*domain.Subscription, error) {
	var rows []domain.Subscription
	err := db.WithContext(ctx).
		Where("subscriber = ? AND channel_id = ?", subscriber, channelID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

func (r *repo) ListByChannel(ctx context.Context, db *gorm.DB, channelID uint64) ([]*domain.Subscription, error) {
	var rows []*domain.Subscription
	err := db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at ASC, subscriber ASC").
		Find(&rows).Error
	return rows, err
}
