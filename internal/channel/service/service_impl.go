package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/events"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Ledger *ledger.Executor
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Repo   domain.Repository
}

type Service struct {
	ledger       *ledger.Executor
	log          *zap.Logger
	clock        clock.Clock
	repo         domain.Repository
	defaultToken string
}

func New(p Params) domain.Service {
	return &Service{
		ledger:       p.Ledger,
		log:          p.Log.Named("channel.service"),
		clock:        p.Clock,
		repo:         p.Repo,
		defaultToken: p.Config.Payment.DefaultToken,
	}
}

func (s *Service) CreateChannel(ctx context.Context, req domain.CreateChannelRequest) (*domain.Channel, error) {
	owner, err := identity.RequireCaller(ctx)
	if err != nil {
		return nil, err
	}

	tiers, err := buildTiers(req.Tiers)
	if err != nil {
		return nil, err
	}

	token := normalizeToken(req.PaymentToken)
	if token == "" {
		token = normalizeToken(s.defaultToken)
	}

	now := s.clock.Now(ctx).UTC()
	name := strings.TrimSpace(req.Name)

	var created *domain.Channel
	err = s.ledger.Apply(ctx, func(tx *gorm.DB) error {
		id, err := s.ledger.NextID(ctx, tx, ledgerdomain.SequenceChannel)
		if err != nil {
			return err
		}

		ch := &domain.Channel{
			ID:           id,
			Owner:        owner,
			Name:         name,
			Slug:         channelSlug(name, id),
			PaymentToken: token,
			CreatedAt:    now,
			Tiers:        tiers,
		}
		if err := s.repo.Insert(ctx, tx, ch); err != nil {
			return err
		}
		if err := s.ledger.Emit(ctx, tx, events.EventChannelCreated, events.ChannelCreated{
			ChannelID: ch.ID,
			Owner:     ch.Owner,
		}, now); err != nil {
			return err
		}
		created = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("channel created",
		zap.Uint64("channel_id", created.ID),
		zap.String("owner", created.Owner),
		zap.Int("tiers", len(created.Tiers)),
	)
	return created, nil
}

func (s *Service) GetChannel(ctx context.Context, id uint64) (*domain.Channel, error) {
	ch, err := s.repo.FindByID(ctx, s.ledger.DB(), id)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, domain.ErrChannelNotFound
	}
	return ch, nil
}

func (s *Service) ListChannels(ctx context.Context, req domain.ListRequest) ([]*domain.Channel, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, s.ledger.DB(), req.AfterID, limit)
}

func (s *Service) IsOwner(ctx context.Context, channelID uint64, who string) (bool, error) {
	ch, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	return ch.Owner == identity.Normalize(who), nil
}

func buildTiers(inputs []domain.TierInput) ([]domain.Tier, error) {
	if len(inputs) == 0 || len(inputs) > domain.MaxTiers {
		return nil, domain.ErrInvalidTierConfig
	}
	tiers := make([]domain.Tier, 0, len(inputs))
	for i, in := range inputs {
		class, ok := domain.ParseDurationClass(in.DurationClass)
		if !ok || in.Price < 0 {
			return nil, domain.ErrInvalidTierConfig
		}
		tiers = append(tiers, domain.Tier{
			TierIndex:     i,
			DurationClass: class,
			Price:         uint64(in.Price),
		})
	}
	return tiers, nil
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func channelSlug(name string, id uint64) string {
	if s := slug.Make(name); s != "" {
		return s
	}
	return fmt.Sprintf("channel-%d", id)
}
