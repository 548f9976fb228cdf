package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, channel *Channel) error
	FindByID(ctx context.Context, db *gorm.DB, id uint64) (*Channel, error)
	List(ctx context.Context, db *gorm.DB, afterID uint64, limit int) ([]*Channel, error)
	IncrementSubscriberCount(ctx context.Context, db *gorm.DB, channelID uint64, tierIndex int) error
}
