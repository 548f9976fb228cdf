package service

import (
	"context"
	"strings"
	"time"

	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	encdomain "github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/railzwaylabs/cipherpoll/internal/events"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
	"github.com/railzwaylabs/cipherpoll/internal/topic/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Ledger      *ledger.Executor
	Log         *zap.Logger
	Clock       clock.Clock
	Scheme      encdomain.Scheme
	Repo        domain.Repository
	ChannelRepo channeldomain.Repository
}

type Service struct {
	ledger      *ledger.Executor
	log         *zap.Logger
	clock       clock.Clock
	scheme      encdomain.Scheme
	repo        domain.Repository
	channelRepo channeldomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		ledger:      p.Ledger,
		log:         p.Log.Named("topic.service"),
		clock:       p.Clock,
		scheme:      p.Scheme,
		repo:        p.Repo,
		channelRepo: p.ChannelRepo,
	}
}

func (s *Service) CreateTopic(ctx context.Context, req domain.CreateTopicRequest) (*domain.Topic, error) {
	caller, err := identity.RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx).UTC()

	var created *domain.Topic
	err = s.ledger.Apply(ctx, func(tx *gorm.DB) error {
		ch, err := s.channelRepo.FindByID(ctx, tx, req.ChannelID)
		if err != nil {
			return err
		}
		if ch == nil {
			return channeldomain.ErrChannelNotFound
		}
		if ch.Owner != caller {
			return domain.ErrNotChannelOwner
		}
		if !req.EndTime.After(now) {
			return domain.ErrInvalidEndDate
		}
		if req.MinValue > req.MaxValue || req.DefaultValue < req.MinValue || req.DefaultValue > req.MaxValue {
			return domain.ErrInvalidValueRange
		}

		zero, err := s.scheme.Encrypt(0)
		if err != nil {
			return err
		}
		id, err := s.ledger.NextID(ctx, tx, ledgerdomain.SequenceTopic)
		if err != nil {
			return err
		}

		t := &domain.Topic{
			ID:                  id,
			ChannelID:           ch.ID,
			Creator:             caller,
			ContentRef:          strings.TrimSpace(req.ContentRef),
			EndTime:             req.EndTime.UTC(),
			MinValue:            req.MinValue,
			MaxValue:            req.MaxValue,
			DefaultValue:        req.DefaultValue,
			AggregateCiphertext: zero,
			State:               domain.StateOpen,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.Insert(ctx, tx, t); err != nil {
			return err
		}
		if err := s.ledger.Emit(ctx, tx, events.EventTopicCreated, events.TopicCreated{
			TopicID:    t.ID,
			ChannelID:  t.ChannelID,
			Creator:    t.Creator,
			ContentRef: t.ContentRef,
			EndTime:    t.EndTime,
		}, now); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("topic created",
		zap.Uint64("topic_id", created.ID),
		zap.Uint64("channel_id", created.ChannelID),
		zap.Time("end_time", created.EndTime),
	)
	return created, nil
}

func (s *Service) GetTopic(ctx context.Context, id uint64) (*domain.Topic, error) {
	t, err := s.repo.FindByID(ctx, s.ledger.DB(), id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrTopicNotFound
	}
	return t, nil
}

func (s *Service) GetChannelTopics(ctx context.Context, channelID uint64) ([]*domain.Topic, error) {
	if err := s.ensureChannel(ctx, channelID); err != nil {
		return nil, err
	}
	return s.repo.ListByChannel(ctx, s.ledger.DB(), channelID)
}

func (s *Service) GetChannelTopicCount(ctx context.Context, channelID uint64) (int64, error) {
	if err := s.ensureChannel(ctx, channelID); err != nil {
		return 0, err
	}
	return s.repo.CountByChannel(ctx, s.ledger.DB(), channelID)
}

// CloseIfExpired is callable by anyone and is a no-op unless the topic is
// open and past its end time.
func (s *Service) CloseIfExpired(ctx context.Context, id uint64) (*domain.Topic, error) {
	now := s.clock.Now(ctx).UTC()

	var out *domain.Topic
	err := s.ledger.Apply(ctx, func(tx *gorm.DB) error {
		t, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.ErrTopicNotFound
		}
		if _, err := s.closeExpired(ctx, tx, t, now); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// CloseExpired sweeps up to limit open topics whose end time has passed.
func (s *Service) CloseExpired(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now(ctx).UTC()

	candidates, err := s.repo.ListExpiredOpen(ctx, s.ledger.DB(), now, limit)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, c := range candidates {
		err := s.ledger.Apply(ctx, func(tx *gorm.DB) error {
			t, err := s.repo.FindByID(ctx, tx, c.ID)
			if err != nil || t == nil {
				return err
			}
			ok, err := s.closeExpired(ctx, tx, t, now)
			if ok {
				closed++
			}
			return err
		})
		if err != nil {
			return closed, err
		}
	}
	if closed > 0 {
		s.log.Info("closed expired topics", zap.Int("count", closed))
	}
	return closed, nil
}

func (s *Service) closeExpired(ctx context.Context, tx *gorm.DB, t *domain.Topic, now time.Time) (bool, error) {
	if !t.CloseIfExpired(now) {
		return false, nil
	}
	if err := s.repo.Update(ctx, tx, t); err != nil {
		return false, err
	}
	return true, s.ledger.Emit(ctx, tx, events.EventTopicClosed, events.TopicClosed{TopicID: t.ID}, now)
}

func (s *Service) ensureChannel(ctx context.Context, channelID uint64) error {
	ch, err := s.channelRepo.FindByID(ctx, s.ledger.DB(), channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return channeldomain.ErrChannelNotFound
	}
	return nil
}
