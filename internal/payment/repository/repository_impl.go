package repository

import (
	"context"

	"github.com/railzwaylabs/cipherpoll/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, token, holder string) (*domain.Balance, error) {
	var rows []domain.Balance
	err := db.WithContext(ctx).
		Where("token = ? AND holder = ?", token, holder).
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

func (r *repo) Save(ctx context.Context, db *gorm.DB, balance *domain.Balance) error {
	return db.WithContext(ctx).Save(balance).Error
}
