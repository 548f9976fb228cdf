package repository

import (
	"context"

	"github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, channel *domain.Channel) error {
	if err := db.WithContext(ctx).Create(channel).Error; err != nil {
		return err
	}
	if len(channel.Tiers) == 0 {
		return nil
	}
	for i := range channel.Tiers {
		channel.Tiers[i].ChannelID = channel.ID
	}
	return db.WithContext(ctx).Create(&channel.Tiers).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id uint64) (*domain.Channel, error) {
	var rows []domain.Channel
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	c := rows[0]
	if err := r.loadTiers(ctx, db, []*domain.Channel{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, afterID uint64, limit int) ([]*domain.Channel, error) {
	var rows []*domain.Channel
	err := db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadTiers(ctx, db, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) IncrementSubscriberCount(ctx context.Context, db *gorm.DB, channelID uint64, tierIndex int) error {
	res := db.WithContext(ctx).
		Model(&domain.Tier{}).
		Where("channel_id = ? AND tier_index = ?", channelID, tierIndex).
		Update("subscriber_count", gorm.Expr("subscriber_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTierNotFound
	}
	return nil
}

func (r *repo) loadTiers(ctx context.Context, db *gorm.DB, channels []*domain.Channel) error {
	if len(channels) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(channels))
	byID := make(map[uint64]*domain.Channel, len(channels))
	for _, c := range channels {
		ids = append(ids, c.ID)
		byID[c.ID] = c
		c.Tiers = []domain.Tier{}
	}

	var tiers []domain.Tier
	err := db.WithContext(ctx).
		Where("channel_id IN ?", ids).
		Order("channel_id ASC, tier_index ASC").
		Find(&tiers).Error
	if err != nil {
		return err
	}
	for _, t := range tiers {
		if c, ok := byID[t.ChannelID]; ok {
			c.Tiers = append(c.Tiers, t)
		}
	}
	return nil
}
