package service

import (
	"context"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	encdomain "github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/railzwaylabs/cipherpoll/internal/events"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	"github.com/railzwaylabs/cipherpoll/internal/observability"
	subdomain "github.com/railzwaylabs/cipherpoll/internal/subscription/domain"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	finalizePathDefault   = "default"
	finalizePathDecrypted = "decrypted"
)

type Params struct {
	fx.In

	Ledger    *ledger.Executor
	Log       *zap.Logger
	Clock     clock.Clock
	Config    config.Config
	Metrics   *observability.Metrics
	Scheme    encdomain.Scheme
	Oracle    encdomain.Oracle
	Repo      domain.Repository
	TopicRepo topicdomain.Repository
	SubRepo   subdomain.Repository
}

type Service struct {
	ledger     *ledger.Executor
	log        *zap.Logger
	clock      clock.Clock
	metrics    *observability.Metrics
	scheme     encdomain.Scheme
	oracle     encdomain.Oracle
	repo       domain.Repository
	topicRepo  topicdomain.Repository
	subRepo    subdomain.Repository
	retryAfter time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		ledger:     p.Ledger,
		log:        p.Log.Named("aggregation.service"),
		clock:      p.Clock,
		metrics:    p.Metrics,
		scheme:     p.Scheme,
		oracle:     p.Oracle,
		repo:       p.Repo,
		topicRepo:  p.TopicRepo,
		subRepo:    p.SubRepo,
		retryAfter: p.Config.Aggregation.DecryptRetryAfter,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (res *domain.SubmitResult, err error) {
	ctx, span := startSpan(ctx, spanSubmit, attribute.Int64(attrTopicID, int64(req.TopicID)))
	defer func() { endSpan(span, err) }()

	res, err = s.submit(ctx, req)
	if err != nil {
		s.metrics.SubmissionRejected(rejectionReason(err))
		return nil, err
	}
	s.metrics.SubmissionAccepted()
	return res, nil
}

func (s *Service) submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResult, error) {
	submitter, err := identity.RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx).UTC()

	var (
		out     *domain.SubmitResult
		expired bool
	)
	err = s.ledger.Apply(ctx, func(tx *gorm.DB) error {
		t, err := s.loadTopic(ctx, tx, req.TopicID)
		if err != nil {
			return err
		}
		if t.State != topicdomain.StateOpen {
			return topicdomain.ErrTopicNotOpen
		}
		if t.Expired(now) {
			// The close commits even though the submission is rejected.
			expired = true
			return s.closeExpired(ctx, tx, t, now)
		}

		sub, err := s.subRepo.Find(ctx, tx, submitter, t.ChannelID)
		if err != nil {
			return err
		}
		if sub == nil || !sub.ActiveAt(now) {
			return domain.ErrSubscriptionRequired
		}

		dup, err := s.repo.HasParticipated(ctx, tx, t.ID, submitter)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateSubmission
		}

		weight := weightFor(sub)
		if !fitsAggregate(t, weight) {
			return domain.ErrAggregateCapacityExceeded
		}

		inRange, err := s.oracle.RangeCheck(ctx, req.Ciphertext, t.MinValue, t.MaxValue)
		if err != nil {
			return err
		}
		if !inRange {
			return domain.ErrValueOutOfRange
		}

		scaled, err := s.scheme.Scale(req.Ciphertext, int64(weight))
		if err != nil {
			return err
		}
		agg, err := s.scheme.Add(t.AggregateCiphertext, scaled)
		if err != nil {
			return err
		}

		t.AggregateCiphertext = agg
		t.TotalWeight += weight
		t.SubmissionCount++
		t.UpdatedAt = now
		if err := s.topicRepo.Update(ctx, tx, t); err != nil {
			return err
		}
		if err := s.repo.InsertParticipation(ctx, tx, &domain.Participation{
			TopicID:   t.ID,
			Submitter: submitter,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := s.ledger.Emit(ctx, tx, events.EventSubmissionAccepted, events.SubmissionAccepted{
			TopicID:   t.ID,
			Submitter: submitter,
		}, now); err != nil {
			return err
		}

		out = &domain.SubmitResult{
			TopicID:         t.ID,
			Weight:          weight,
			TotalWeight:     t.TotalWeight,
			SubmissionCount: t.SubmissionCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, topicdomain.ErrTopicExpired
	}

	s.log.Debug("submission accepted",
		zap.Uint64("topic_id", out.TopicID),
		zap.Uint64("submission_count", out.SubmissionCount),
	)
	return out, nil
}

// Finalize is idempotent. A finalized topic returns its stored result without
// touching the coprocessor; a closed topic with a fresh outstanding request
// returns the pending result.
func (s *Service) Finalize(ctx context.Context, topicID uint64) (res *domain.FinalizeResult, err error) {
	ctx, span := startSpan(ctx, spanFinalize, attribute.Int64(attrTopicID, int64(topicID)))
	defer func() { endSpan(span, err) }()

	now := s.clock.Now(ctx).UTC()

	var path string
	err = s.ledger.Apply(ctx, func(tx *gorm.DB) error {
		path = ""
		t, err := s.loadTopic(ctx, tx, topicID)
		if err != nil {
			return err
		}

		switch t.State {
		case topicdomain.StateFinalized:
			res = toFinalizeResult(t)
			return nil
		case topicdomain.StateOpen:
			if !t.Expired(now) {
				return topicdomain.ErrTopicStillOpen
			}
			if err := s.closeExpired(ctx, tx, t, now); err != nil {
				return err
			}
		}

		if t.SubmissionCount == 0 {
			t.Finalize(t.DefaultValue, now)
			if err := s.topicRepo.Update(ctx, tx, t); err != nil {
				return err
			}
			if err := s.emitFinalized(ctx, tx, t, now); err != nil {
				return err
			}
			path = finalizePathDefault
			res = toFinalizeResult(t)
			return nil
		}

		if t.DecryptionPending() && !s.stale(t, now) {
			res = toFinalizeResult(t)
			return nil
		}

		requestID, err := s.oracle.RequestDecrypt(ctx, t.AggregateCiphertext)
		if err != nil {
			return err
		}
		if t.DecryptionRequestID != nil {
			s.log.Warn("re-issuing stale decryption request",
				zap.Uint64("topic_id", t.ID),
				zap.String("superseded", *t.DecryptionRequestID),
				zap.String("request_id", requestID),
			)
		}
		requestedAt := now
		t.DecryptionRequestID = &requestID
		t.DecryptionRequestedAt = &requestedAt
		t.UpdatedAt = now
		if err := s.topicRepo.Update(ctx, tx, t); err != nil {
			return err
		}
		if err := s.ledger.Emit(ctx, tx, events.EventDecryptionRequested, events.DecryptionRequested{
			TopicID:   t.ID,
			RequestID: requestID,
		}, now); err != nil {
			return err
		}
		res = toFinalizeResult(t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if path != "" {
		s.metrics.Finalized(path)
		s.log.Info("topic finalized with default value",
			zap.Uint64("topic_id", topicID),
			zap.Int64("revealed_aggregate", *res.RevealedAggregate),
		)
	}
	return res, nil
}

// OnDecrypted completes a pending finalize. Callbacks for unknown or
// superseded requests are rejected without changing anything.
func (s *Service) OnDecrypted(ctx context.Context, requestID string, plaintext int64) (err error) {
	ctx, span := startSpan(ctx, spanOnDecrypted, attribute.String(attrRequestID, requestID))
	defer func() { endSpan(span, err) }()

	now := s.clock.Now(ctx).UTC()

	var topicID uint64
	err = s.ledger.Apply(ctx, func(tx *gorm.DB) error {
		t, err := s.topicRepo.FindByDecryptionRequestID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if t == nil || t.State != topicdomain.StateClosed {
			return domain.ErrUnknownDecryptionRequest
		}

		t.Finalize(plaintext, now)
		if err := s.topicRepo.Update(ctx, tx, t); err != nil {
			return err
		}
		topicID = t.ID
		return s.emitFinalized(ctx, tx, t, now)
	})
	if err != nil {
		return err
	}

	s.metrics.Finalized(finalizePathDecrypted)
	s.log.Info("topic finalized",
		zap.Uint64("topic_id", topicID),
		zap.String("request_id", requestID),
		zap.Int64("revealed_aggregate", plaintext),
	)
	return nil
}

// RetryStaleDecryptions re-runs finalize for closed topics whose decryption
// request has been outstanding longer than the retry window.
func (s *Service) RetryStaleDecryptions(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now(ctx).UTC()
	topics, err := s.topicRepo.ListStaleDecryptions(ctx, s.ledger.DB(), now.Add(-s.retryAfter), limit)
	if err != nil {
		return 0, err
	}

	var errs []error
	retried := 0
	for _, t := range topics {
		if _, err := s.Finalize(ctx, t.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		retried++
	}
	return retried, errors.Join(errs...)
}

func (s *Service) loadTopic(ctx context.Context, tx *gorm.DB, id uint64) (*topicdomain.Topic, error) {
	t, err := s.topicRepo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, topicdomain.ErrTopicNotFound
	}
	return t, nil
}

func (s *Service) closeExpired(ctx context.Context, tx *gorm.DB, t *topicdomain.Topic, now time.Time) error {
	if !t.CloseIfExpired(now) {
		return nil
	}
	if err := s.topicRepo.Update(ctx, tx, t); err != nil {
		return err
	}
	return s.ledger.Emit(ctx, tx, events.EventTopicClosed, events.TopicClosed{TopicID: t.ID}, now)
}

func (s *Service) emitFinalized(ctx context.Context, tx *gorm.DB, t *topicdomain.Topic, now time.Time) error {
	return s.ledger.Emit(ctx, tx, events.EventTopicFinalized, events.TopicFinalized{
		TopicID:           t.ID,
		RevealedAggregate: *t.RevealedAggregate,
	}, now)
}

func (s *Service) stale(t *topicdomain.Topic, now time.Time) bool {
	if s.retryAfter <= 0 || t.DecryptionRequestedAt == nil {
		return false
	}
	return !now.Before(t.DecryptionRequestedAt.Add(s.retryAfter))
}

// weightFor is the influence of one submission. Every active subscription
// counts once regardless of tier.
func weightFor(*subdomain.Subscription) uint64 {
	return 1
}

// fitsAggregate reports whether the decrypted sum stays within int64 for any
// in-range value once weight is added. It reads only cleartext topic fields.
func fitsAggregate(t *topicdomain.Topic, weight uint64) bool {
	n := new(big.Int).SetUint64(t.TotalWeight)
	n.Add(n, new(big.Int).SetUint64(weight))

	hi := new(big.Int).Mul(n, big.NewInt(t.MaxValue))
	lo := new(big.Int).Mul(n, big.NewInt(t.MinValue))
	return hi.Cmp(big.NewInt(math.MaxInt64)) <= 0 && lo.Cmp(big.NewInt(math.MinInt64)) >= 0
}

func toFinalizeResult(t *topicdomain.Topic) *domain.FinalizeResult {
	res := &domain.FinalizeResult{
		TopicID:           t.ID,
		State:             t.State,
		Pending:           t.DecryptionPending(),
		RevealedAggregate: t.RevealedAggregate,
		TotalWeight:       t.TotalWeight,
		SubmissionCount:   t.SubmissionCount,
		FinalizedAt:       t.FinalizedAt,
	}
	if res.Pending {
		res.DecryptionRequestID = *t.DecryptionRequestID
	}
	return res
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, topicdomain.ErrTopicNotFound):
		return "topic_not_found"
	case errors.Is(err, topicdomain.ErrTopicNotOpen):
		return "topic_not_open"
	case errors.Is(err, topicdomain.ErrTopicExpired):
		return "topic_expired"
	case errors.Is(err, domain.ErrSubscriptionRequired):
		return "subscription_required"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return "duplicate_submission"
	case errors.Is(err, domain.ErrValueOutOfRange):
		return "value_out_of_range"
	case errors.Is(err, encdomain.ErrInvalidCiphertext):
		return "invalid_ciphertext"
	case errors.Is(err, identity.ErrMissingCaller):
		return "missing_caller"
	default:
		return "error"
	}
}
