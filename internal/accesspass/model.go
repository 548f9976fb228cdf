package accesspass

import (
	"time"

	"gorm.io/datatypes"
)

// AccessPass is the latest pass minted for a holder on a channel.
type AccessPass struct {
	Holder    string         `gorm:"primaryKey;type:varchar(255)" json:"holder"`
	ChannelID uint64         `gorm:"primaryKey;autoIncrement:false" json:"channel_id"`
	PassID    string         `gorm:"type:varchar(32);not null" json:"pass_id"`
	ExpiresAt time.Time      `gorm:"not null" json:"expires_at"`
	Document  datatypes.JSON `gorm:"not null" json:"document"`
	IssuedAt  time.Time      `gorm:"not null" json:"issued_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (AccessPass) TableName() string { return "access_passes" }
