package repository

import (
	"context"
	"time"

	"github.com/railzwaylabs/cipherpoll/internal/topic/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, topic *domain.Topic) error {
	return db.WithContext(ctx).Create(topic).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id uint64) (*domain.Topic, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByDecryptionRequestID(ctx context.Context, db *gorm.DB, requestID string) (*domain.Topic, error) {
	return r.findOne(ctx, db, "decryption_request_id = ?", requestID)
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, topic *domain.Topic) error {
	return db.WithContext(ctx).Save(topic).Error
}

func (r *repo) ListByChannel(ctx context.Context, db *gorm.DB, channelID uint64) ([]*domain.Topic, error) {
	var rows []*domain.Topic
	err := db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) CountByChannel(ctx context.Context, db *gorm.DB, channelID uint64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Topic{}).
		Where("channel_id = ?", channelID).
		Count(&count).Error
	return count, err
}

func (r *repo) ListExpiredOpen(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Topic, error) {
	var rows []*domain.Topic
	err := db.WithContext(ctx).
		Where("state = ? AND end_time <= ?", domain.StateOpen, now.UTC()).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repo) ListStaleDecryptions(ctx context.Context, db *gorm.DB, requestedBefore time.Time, limit int) ([]*domain.Topic, error) {
	var rows []*domain.Topic
	err := db.WithContext(ctx).
		Where("state = ? AND decryption_request_id IS NOT NULL AND decryption_requested_at <= ?",
			domain.StateClosed, requestedBefore.UTC()).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Topic, error) {
	var rows []domain.Topic
	if err := db.WithContext(ctx).Where(query, args...).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
