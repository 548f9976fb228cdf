// Package domain contains the persistence models backing the execution ledger.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Sequence is a dense monotonic counter; Value is the last id handed out.
type Sequence struct {
	Name  string `gorm:"primaryKey;type:varchar(64)"`
	Value uint64 `gorm:"not null"`
}

func (Sequence) TableName() string { return "ledger_sequences" }

// Event is an outbox row written in the same transaction as the state
// transition it describes.
type Event struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Type      string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Payload   datatypes.JSON `gorm:"not null" json:"payload"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (Event) TableName() string { return "ledger_events" }

type ConsumerOffset struct {
	ConsumerID  string    `gorm:"primaryKey;type:varchar(64)"`
	LastEventID uint64    `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (ConsumerOffset) TableName() string { return "event_consumer_offsets" }

const (
	SequenceChannel = "channel"
	SequenceTopic   = "topic"
	SequenceEvent   = "event"
)
