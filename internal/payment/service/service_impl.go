package service

import (
	"context"
	"math"
	"strings"

	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	"github.com/railzwaylabs/cipherpoll/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Ledger *ledger.Executor
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
}

type Service struct {
	ledger *ledger.Executor
	log    *zap.Logger
	clock  clock.Clock
	repo   domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		ledger: p.Ledger,
		log:    p.Log.Named("payment.service"),
		clock:  p.Clock,
		repo:   p.Repo,
	}
}

// Credit mints amount of token to holder. It backs the development faucet.
func (s *Service) Credit(ctx context.Context, token, holder string, amount uint64) (*domain.Balance, error) {
	token = NormalizeToken(token)
	holder = identity.Normalize(holder)
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	if holder == "" {
		return nil, identity.ErrMissingCaller
	}
	if amount == 0 {
		return nil, domain.ErrInvalidAmount
	}

	var out *domain.Balance
	err := s.ledger.Apply(ctx, func(tx *gorm.DB) error {
		bal, err := s.load(ctx, tx, token, holder)
		if err != nil {
			return err
		}
		if bal.Amount > math.MaxUint64-amount {
			return domain.ErrInvalidAmount
		}
		bal.Amount += amount
		bal.UpdatedAt = s.clock.Now(ctx).UTC()
		if err := s.repo.Save(ctx, tx, bal); err != nil {
			return err
		}
		out = bal
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("token credited",
		zap.String("token", token),
		zap.String("holder", holder),
		zap.Uint64("amount", amount),
	)
	return out, nil
}

func (s *Service) Balance(ctx context.Context, token, holder string) (*domain.Balance, error) {
	return s.load(ctx, s.ledger.DB(), NormalizeToken(token), identity.Normalize(holder))
}

func (s *Service) Transfer(ctx context.Context, tx *gorm.DB, token, from, to string, amount uint64) error {
	token = NormalizeToken(token)
	if amount == 0 || from == to {
		return nil
	}

	src, err := s.load(ctx, tx, token, from)
	if err != nil {
		return err
	}
	if src.Amount < amount {
		return domain.ErrInsufficientBalance
	}
	dst, err := s.load(ctx, tx, token, to)
	if err != nil {
		return err
	}
	if dst.Amount > math.MaxUint64-amount {
		return domain.ErrInvalidAmount
	}

	now := s.clock.Now(ctx).UTC()
	src.Amount -= amount
	src.UpdatedAt = now
	dst.Amount += amount
	dst.UpdatedAt = now

	if err := s.repo.Save(ctx, tx, src); err != nil {
		return err
	}
	return s.repo.Save(ctx, tx, dst)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, token, holder string) (*domain.Balance, error) {
	bal, err := s.repo.Find(ctx, db, token, holder)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = &domain.Balance{Token: token, Holder: holder}
	}
	return bal, nil
}

func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}
