package domain

import (
	"context"
	"errors"
	"time"

	encdomain "github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
)

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Finalize(ctx context.Context, topicID uint64) (*FinalizeResult, error)
	OnDecrypted(ctx context.Context, requestID string, plaintext int64) error
	RetryStaleDecryptions(ctx context.Context, limit int) (int, error)
}

type SubmitRequest struct {
	TopicID    uint64
	Ciphertext encdomain.Ciphertext
	// WeightHint is accepted for forward compatibility; weight is always 1.
	WeightHint uint64
}

type SubmitResult struct {
	TopicID         uint64 `json:"topic_id"`
	Weight          uint64 `json:"weight"`
	TotalWeight     uint64 `json:"total_weight"`
	SubmissionCount uint64 `json:"submission_count"`
}

// FinalizeResult is returned both while decryption is pending and after the
// topic is finalized.
type FinalizeResult struct {
	TopicID             uint64            `json:"topic_id"`
	State               topicdomain.State `json:"state"`
	Pending             bool              `json:"pending"`
	DecryptionRequestID string            `json:"decryption_request_id,omitempty"`
	RevealedAggregate   *int64            `json:"revealed_aggregate,omitempty"`
	TotalWeight         uint64            `json:"total_weight"`
	SubmissionCount     uint64            `json:"submission_count"`
	FinalizedAt         *time.Time        `json:"finalized_at,omitempty"`
}

var (
	ErrSubscriptionRequired = errors.New("subscription_required")
	ErrValueOutOfRange      = errors.New("value_out_of_range")
	ErrDuplicateSubmission  = errors.New("duplicate_submission")
	// ErrAggregateCapacityExceeded rejects a submission that could push the
	// decrypted sum outside int64.
	ErrAggregateCapacityExceeded = errors.New("aggregate_capacity_exceeded")
	ErrUnknownDecryptionRequest  = errors.New("unknown_decryption_request")
)
