package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	HasParticipated(ctx context.Context, db *gorm.DB, topicID uint64, submitter string) (bool, error)
	InsertParticipation(ctx context.Context, db *gorm.DB, p *Participation) error
}
