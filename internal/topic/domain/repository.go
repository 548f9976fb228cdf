package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, topic *Topic) error
	FindByID(ctx context.Context, db *gorm.DB, id uint64) (*Topic, error)
	FindByDecryptionRequestID(ctx context.Context, db *gorm.DB, requestID string) (*Topic, error)
	Update(ctx context.Context, db *gorm.DB, topic *Topic) error
	ListByChannel(ctx context.Context, db *gorm.DB, channelID uint64) ([]*Topic, error)
	CountByChannel(ctx context.Context, db *gorm.DB, channelID uint64) (int64, error)
	ListExpiredOpen(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Topic, error)
	ListStaleDecryptions(ctx context.Context, db *gorm.DB, requestedBefore time.Time, limit int) ([]*Topic, error)
}
