package domain

import (
	"time"
)

type State string

const (
	StateOpen      State = "open"
	StateClosed    State = "closed"
	StateFinalized State = "finalized"
)

// Topic is a time-boxed confidential collection round. Individual submissions
// are never stored; only their homomorphic sum and counters survive.
type Topic struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ChannelID    uint64    `gorm:"not null;index" json:"channel_id"`
	Creator      string    `gorm:"type:varchar(255);not null" json:"creator"`
	ContentRef   string    `gorm:"type:text;not null" json:"content_ref"`
	EndTime      time.Time `gorm:"not null;index" json:"end_time"`
	MinValue     int64     `gorm:"not null" json:"min_value"`
	MaxValue     int64     `gorm:"not null" json:"max_value"`
	DefaultValue int64     `gorm:"not null" json:"default_value"`

	TotalWeight         uint64 `gorm:"not null;default:0" json:"total_weight"`
	SubmissionCount     uint64 `gorm:"not null;default:0" json:"submission_count"`
	AggregateCiphertext []byte `gorm:"not null" json:"-"`
	RevealedAggregate   *int64 `json:"revealed_aggregate,omitempty"`
	State               State  `gorm:"type:varchar(16);not null;index" json:"state"`

	DecryptionRequestID   *string    `gorm:"type:varchar(64);index" json:"decryption_request_id,omitempty"`
	DecryptionRequestedAt *time.Time `json:"decryption_requested_at,omitempty"`

	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

func (Topic) TableName() string { return "topics" }

// Expired reports whether ledger time has reached the end time.
func (t *Topic) Expired(now time.Time) bool {
	return !now.Before(t.EndTime)
}

// CloseIfExpired moves an open topic past its end time to Closed and reports
// whether it did.
func (t *Topic) CloseIfExpired(now time.Time) bool {
	if t.State != StateOpen || !t.Expired(now) {
		return false
	}
	t.State = StateClosed
	closedAt := now.UTC()
	t.ClosedAt = &closedAt
	t.UpdatedAt = closedAt
	return true
}

// Finalize stores the revealed aggregate. It is the only way into Finalized.
func (t *Topic) Finalize(revealed int64, now time.Time) {
	at := now.UTC()
	t.RevealedAggregate = &revealed
	t.State = StateFinalized
	t.FinalizedAt = &at
	t.UpdatedAt = at
}

// DecryptionPending reports whether a decryption request is outstanding.
func (t *Topic) DecryptionPending() bool {
	return t.State == StateClosed && t.DecryptionRequestID != nil
}
