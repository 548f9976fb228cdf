package service

import (
	"context"
	"testing"

	"github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	"github.com/railzwaylabs/cipherpoll/internal/channel/repository"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/events"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	"github.com/railzwaylabs/cipherpoll/internal/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (domain.Service, *ledger.Executor) {
	ex := ledgertest.New(t, &domain.Channel{}, &domain.Tier{})
	cfg := config.Config{Payment: config.PaymentConfig{DefaultToken: "usdc"}}
	svc := New(Params{
		Ledger: ex,
		Log:    zap.NewNop(),
		Clock:  clock.SystemClock{},
		Config: cfg,
		Repo:   repository.Provide(),
	})
	return svc, ex
}

func ownerCtx() context.Context {
	return identity.WithCaller(context.Background(), "Alice")
}

func TestCreateChannel(t *testing.T) {
	svc, ex := newService(t)

	ch, err := svc.CreateChannel(ownerCtx(), domain.CreateChannelRequest{
		Name: "Market Pulse",
		Tiers: []domain.TierInput{
			{DurationClass: "Month", Price: 100},
			{DurationClass: "year", Price: 1000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ch.ID)
	assert.Equal(t, "alice", ch.Owner)
	assert.Equal(t, "market-pulse", ch.Slug)
	assert.Equal(t, "USDC", ch.PaymentToken)
	require.Len(t, ch.Tiers, 2)
	assert.Equal(t, domain.DurationMonth, ch.Tiers[0].DurationClass)
	assert.Equal(t, uint64(0), ch.Tiers[1].SubscriberCount)

	got, err := svc.GetChannel(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.Name, got.Name)
	assert.Len(t, got.Tiers, 2)

	evts := ledgertest.Events(t, ex, events.EventChannelCreated)
	require.Len(t, evts, 1)
	var payload events.ChannelCreated
	ledgertest.Decode(t, evts[0], &payload)
	assert.Equal(t, events.ChannelCreated{ChannelID: 1, Owner: "alice"}, payload)

	second, err := svc.CreateChannel(ownerCtx(), domain.CreateChannelRequest{
		Name:  "C",
		Tiers: []domain.TierInput{{DurationClass: "day", Price: 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ID)
}

func TestCreateChannel_InvalidTierConfig(t *testing.T) {
	svc, ex := newService(t)

	tests := []struct {
		name  string
		tiers []domain.TierInput
	}{
		{"empty", nil},
		{"unknown duration", []domain.TierInput{{DurationClass: "fortnight", Price: 1}}},
		{"negative price", []domain.TierInput{{DurationClass: "day", Price: -1}}},
		{"too many", make([]domain.TierInput, domain.MaxTiers+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateChannel(ownerCtx(), domain.CreateChannelRequest{Name: "x", Tiers: tt.tiers})
			assert.ErrorIs(t, err, domain.ErrInvalidTierConfig)
		})
	}

	assert.Empty(t, ledgertest.Events(t, ex, events.EventChannelCreated))
}

func TestCreateChannel_RequiresCaller(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateChannel(context.Background(), domain.CreateChannelRequest{
		Name:  "x",
		Tiers: []domain.TierInput{{DurationClass: "day"}},
	})
	assert.ErrorIs(t, err, identity.ErrMissingCaller)
}

func TestGetChannel_NotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetChannel(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrChannelNotFound)

	_, err = svc.IsOwner(context.Background(), 999, "alice")
	assert.ErrorIs(t, err, domain.ErrChannelNotFound)
}

func TestIsOwnerAndList(t *testing.T) {
	svc, _ := newService(t)
	for _, name := range []string{"one", "two", "three"} {
		_, err := svc.CreateChannel(ownerCtx(), domain.CreateChannelRequest{
			Name:  name,
			Tiers: []domain.TierInput{{DurationClass: "week", Price: 5}},
		})
		require.NoError(t, err)
	}

	ok, err := svc.IsOwner(context.Background(), 2, " ALICE ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsOwner(context.Background(), 2, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	page, err := svc.ListChannels(context.Background(), domain.ListRequest{AfterID: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "two", page[0].Name)
	assert.Equal(t, "three", page[1].Name)
	assert.Len(t, page[1].Tiers, 1)
}
