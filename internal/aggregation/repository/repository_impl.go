package repository

import (
	"context"

	"github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) HasParticipated(ctx context.Context, db *gorm.DB, topicID uint64, submitter string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Participation{}).
		Where("topic_id = ? AND submitter = ?", topicID, submitter).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) InsertParticipation(ctx context.Context, db *gorm.DB, p *domain.Participation) error {
	return db.WithContext(ctx).Create(p).Error
}
