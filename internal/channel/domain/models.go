package domain

import (
	"strings"
	"time"
)

type DurationClass string

const (
	DurationDay   DurationClass = "day"
	DurationWeek  DurationClass = "week"
	DurationMonth DurationClass = "month"
	DurationYear  DurationClass = "year"
)

// ParseDurationClass accepts the enum names case-insensitively.
func ParseDurationClass(raw string) (DurationClass, bool) {
	d := DurationClass(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := d.Length(); !ok {
		return "", false
	}
	return d, true
}

// Length is the subscription time a purchase of this class adds.
func (d DurationClass) Length() (time.Duration, bool) {
	switch d {
	case DurationDay:
		return 24 * time.Hour, true
	case DurationWeek:
		return 7 * 24 * time.Hour, true
	case DurationMonth:
		return 30 * 24 * time.Hour, true
	case DurationYear:
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

type Channel struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Owner        string    `gorm:"type:varchar(255);not null;index" json:"owner"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug         string    `gorm:"type:varchar(255);not null;index" json:"slug"`
	PaymentToken string    `gorm:"type:varchar(64);not null" json:"payment_token"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`

	Tiers []Tier `gorm:"-" json:"tiers"`
}

func (Channel) TableName() string { return "channels" }

// Tier returns the tier at index, or nil when out of range.
func (c *Channel) Tier(index int) *Tier {
	if index < 0 || index >= len(c.Tiers) {
		return nil
	}
	return &c.Tiers[index]
}

type Tier struct {
	ChannelID       uint64        `gorm:"primaryKey;autoIncrement:false" json:"-"`
	TierIndex       int           `gorm:"primaryKey;autoIncrement:false" json:"index"`
	DurationClass   DurationClass `gorm:"type:varchar(16);not null" json:"duration_class"`
	Price           uint64        `gorm:"not null" json:"price"`
	SubscriberCount uint64        `gorm:"not null;default:0" json:"subscriber_count"`
}

func (Tier) TableName() string { return "channel_tiers" }
