package domain

import "time"

// Participation marks that a submitter contributed to a topic. The value
// itself is never stored.
type Participation struct {
	TopicID   uint64    `gorm:"primaryKey;autoIncrement:false"`
	Submitter string    `gorm:"primaryKey;type:varchar(255)"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Participation) TableName() string { return "topic_submissions" }
