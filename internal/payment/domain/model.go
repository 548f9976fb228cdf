package domain

import "time"

// Balance is one holder's position in one payment token.
type Balance struct {
	Token     string    `gorm:"primaryKey;type:varchar(64)" json:"token"`
	Holder    string    `gorm:"primaryKey;type:varchar(255)" json:"holder"`
	Amount    uint64    `gorm:"not null;default:0" json:"amount"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Balance) TableName() string { return "token_balances" }
