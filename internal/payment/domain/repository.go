package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, token, holder string) (*Balance, error)
	Save(ctx context.Context, db *gorm.DB, balance *Balance) error
}
