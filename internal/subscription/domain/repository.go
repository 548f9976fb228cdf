package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, subscriber string, channelID uint64) (*Subscription, error)
	Save(ctx context.Context, db *gorm.DB, sub *Subscription) error
	ListByChannel(ctx context.Context, db *gorm.DB, channelID uint64) ([]*Subscription, error)
}
