package service

import (
	"context"

	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/events"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	paymentdomain "github.com/railzwaylabs/cipherpoll/internal/payment/domain"
	paymentservice "github.com/railzwaylabs/cipherpoll/internal/payment/service"
	"github.com/railzwaylabs/cipherpoll/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Ledger      *ledger.Executor
	Log         *zap.Logger
	Clock       clock.Clock
	Repo        domain.Repository
	ChannelRepo channeldomain.Repository
	Payment     paymentdomain.Service
}

type Service struct {
	ledger      *ledger.Executor
	log         *zap.Logger
	clock       clock.Clock
	repo        domain.Repository
	channelRepo channeldomain.Repository
	payment     paymentdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		ledger:      p.Ledger,
		log:         p.Log.Named("subscription.service"),
		clock:       p.Clock,
		repo:        p.Repo,
		channelRepo: p.ChannelRepo,
		payment:     p.Payment,
	}
}

// Subscribe purchases or renews a tier. Payment goes straight to the channel
// owner inside the same transaction. The access pass is minted later from the
// emitted event, so a minting failure can never undo the purchase.
func (s *Service) Subscribe(ctx context.Context, req domain.SubscribeRequest) (*domain.Subscription, error) {
	subscriber, err := identity.RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx).UTC()

	var (
		out     *domain.Subscription
		renewal bool
	)
	err = s.ledger.Apply(ctx, func(tx *gorm.DB) error {
		ch, err := s.channelRepo.FindByID(ctx, tx, req.ChannelID)
		if err != nil {
			return err
		}
		if ch == nil {
			return channeldomain.ErrChannelNotFound
		}
		tier := ch.Tier(req.TierIndex)
		if tier == nil {
			return channeldomain.ErrTierNotFound
		}
		token := paymentservice.NormalizeToken(req.PaymentToken)
		if token == "" {
			token = ch.PaymentToken
		}
		if token != ch.PaymentToken {
			return domain.ErrUnsupportedPaymentToken
		}
		if req.Amount < tier.Price {
			return domain.ErrInsufficientPayment
		}
		length, ok := tier.DurationClass.Length()
		if !ok {
			return channeldomain.ErrInvalidTierConfig
		}

		if err := s.payment.Transfer(ctx, tx, token, subscriber, ch.Owner, req.Amount); err != nil {
			return err
		}

		sub, err := s.repo.Find(ctx, tx, subscriber, ch.ID)
		if err != nil {
			return err
		}
		renewal = sub != nil
		if sub == nil {
			sub = &domain.Subscription{
				Subscriber: subscriber,
				ChannelID:  ch.ID,
				ExpiresAt:  now,
				CreatedAt:  now,
			}
			if err := s.channelRepo.IncrementSubscriberCount(ctx, tx, ch.ID, tier.TierIndex); err != nil {
				return err
			}
		}

		base := sub.ExpiresAt
		if base.Before(now) {
			base = now
		}
		sub.TierIndex = tier.TierIndex
		sub.ExpiresAt = base.Add(length).UTC()
		sub.PaidAmount = req.Amount
		sub.PaymentToken = token
		sub.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, sub); err != nil {
			return err
		}

		if err := s.ledger.Emit(ctx, tx, events.EventSubscriptionPurchased, events.SubscriptionPurchased{
			Subscriber:   sub.Subscriber,
			ChannelID:    sub.ChannelID,
			TierIndex:    sub.TierIndex,
			ExpiresAt:    sub.ExpiresAt,
			PaidAmount:   sub.PaidAmount,
			PaymentToken: sub.PaymentToken,
			Renewal:      renewal,
		}, now); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription purchased",
		zap.String("subscriber", out.Subscriber),
		zap.Uint64("channel_id", out.ChannelID),
		zap.Int("tier_index", out.TierIndex),
		zap.Time("expires_at", out.ExpiresAt),
		zap.Bool("renewal", renewal),
	)
	return out, nil
}

func (s *Service) IsActive(ctx context.Context, subscriber string, channelID uint64) (bool, error) {
	sub, err := s.repo.Find(ctx, s.ledger.DB(), identity.Normalize(subscriber), channelID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	return sub.ActiveAt(s.clock.Now(ctx)), nil
}

func (s *Service) GetSubscription(ctx context.Context, subscriber string, channelID uint64) (*domain.Subscription, error) {
	sub, err := s.repo.Find(ctx, s.ledger.DB(), identity.Normalize(subscriber), channelID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNoSubscription
	}
	return sub, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, channelID uint64) ([]*domain.Subscription, error) {
	ch, err := s.channelRepo.FindByID(ctx, s.ledger.DB(), channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, channeldomain.ErrChannelNotFound
	}
	return s.repo.ListByChannel(ctx, s.ledger.DB(), channelID)
}
