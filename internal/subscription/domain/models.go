package domain

import "time"

// Subscription is keyed by (subscriber, channel). Renewals extend the same row.
type Subscription struct {
	Subscriber   string    `gorm:"primaryKey;type:varchar(255)" json:"subscriber"`
	ChannelID    uint64    `gorm:"primaryKey;autoIncrement:false;index" json:"channel_id"`
	TierIndex    int       `gorm:"not null" json:"tier_index"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	PaidAmount   uint64    `gorm:"not null" json:"paid_amount"`
	PaymentToken string    `gorm:"type:varchar(64);not null" json:"payment_token"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) ActiveAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
