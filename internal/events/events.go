// Package events defines the outbox event types emitted by state transitions.
package events

import "time"

const (
	EventChannelCreated        = "channel.created"
	EventTopicCreated          = "topic.created"
	EventTopicClosed           = "topic.closed"
	EventSubmissionAccepted    = "submission.accepted"
	EventDecryptionRequested   = "topic.decryption_requested"
	EventTopicFinalized        = "topic.finalized"
	EventSubscriptionPurchased = "subscription.purchased"
)

type ChannelCreated struct {
	ChannelID uint64 `json:"channel_id"`
	Owner     string `json:"owner"`
}

type TopicCreated struct {
	TopicID    uint64    `json:"topic_id"`
	ChannelID  uint64    `json:"channel_id"`
	Creator    string    `json:"creator"`
	ContentRef string    `json:"content_ref"`
	EndTime    time.Time `json:"end_time"`
}

type TopicClosed struct {
	TopicID uint64 `json:"topic_id"`
}

// SubmissionAccepted never carries the ciphertext.
type SubmissionAccepted struct {
	TopicID   uint64 `json:"topic_id"`
	Submitter string `json:"submitter"`
}

type DecryptionRequested struct {
	TopicID   uint64 `json:"topic_id"`
	RequestID string `json:"request_id"`
}

type TopicFinalized struct {
	TopicID           uint64 `json:"topic_id"`
	RevealedAggregate int64  `json:"revealed_aggregate"`
}

type SubscriptionPurchased struct {
	Subscriber   string    `json:"subscriber"`
	ChannelID    uint64    `json:"channel_id"`
	TierIndex    int       `json:"tier_index"`
	ExpiresAt    time.Time `json:"expires_at"`
	PaidAmount   uint64    `json:"paid_amount"`
	PaymentToken string    `json:"payment_token"`
	Renewal      bool      `json:"renewal"`
}
