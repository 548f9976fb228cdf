package service

import (
	"context"
	"testing"
	"time"

	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	channelrepo "github.com/railzwaylabs/cipherpoll/internal/channel/repository"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/plaintext"
	"github.com/railzwaylabs/cipherpoll/internal/events"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	"github.com/railzwaylabs/cipherpoll/internal/ledger/ledgertest"
	"github.com/railzwaylabs/cipherpoll/internal/topic/domain"
	"github.com/railzwaylabs/cipherpoll/internal/topic/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    domain.Service
	ledger *ledger.Executor
}

func newFixture(t *testing.T) *fixture {
	ex := ledgertest.New(t, &channeldomain.Channel{}, &channeldomain.Tier{}, &domain.Topic{})
	svc := New(Params{
		Ledger:      ex,
		Log:         zap.NewNop(),
		Clock:       clock.Fixed{At: t0},
		Scheme:      plaintext.New(),
		Repo:        repository.Provide(),
		ChannelRepo: channelrepo.Provide(),
	})

	ctx := context.Background()
	require.NoError(t, ex.Apply(ctx, func(tx *gorm.DB) error {
		return channelrepo.Provide().Insert(ctx, tx, &channeldomain.Channel{
			ID:           1,
			Owner:        "owner",
			Name:         "C",
			Slug:         "c",
			PaymentToken: "USDC",
			CreatedAt:    t0,
			Tiers:        []channeldomain.Tier{{DurationClass: channeldomain.DurationMonth, Price: 100}},
		})
	}))
	return &fixture{svc: svc, ledger: ex}
}

func as(who string) context.Context {
	return identity.WithCaller(context.Background(), who)
}

func validRequest() domain.CreateTopicRequest {
	return domain.CreateTopicRequest{
		ChannelID:    1,
		ContentRef:   "ipfs://bafy",
		EndTime:      t0.Add(86400 * time.Second),
		MinValue:     10,
		MaxValue:     90,
		DefaultValue: 50,
	}
}

func TestCreateTopic(t *testing.T) {
	f := newFixture(t)

	topic, err := f.svc.CreateTopic(as("owner"), validRequest())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), topic.ID)
	assert.Equal(t, domain.StateOpen, topic.State)
	assert.Zero(t, topic.TotalWeight)
	assert.Zero(t, topic.SubmissionCount)
	assert.Nil(t, topic.RevealedAggregate)

	sum, err := plaintext.New().Decrypt(topic.AggregateCiphertext)
	require.NoError(t, err)
	assert.Zero(t, sum)

	evts := ledgertest.Events(t, f.ledger, events.EventTopicCreated)
	require.Len(t, evts, 1)
	var payload events.TopicCreated
	ledgertest.Decode(t, evts[0], &payload)
	assert.Equal(t, uint64(1), payload.TopicID)
	assert.Equal(t, "owner", payload.Creator)
	assert.Equal(t, "ipfs://bafy", payload.ContentRef)
	assert.True(t, payload.EndTime.Equal(validRequest().EndTime))
}

func TestCreateTopic_ValidationOrder(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		caller string
		mutate func(*domain.CreateTopicRequest)
		want   error
	}{
		{
			name:   "unknown channel wins over everything",
			caller: "mallory",
			mutate: func(r *domain.CreateTopicRequest) {
				r.ChannelID = 999
				r.EndTime = t0.Add(-time.Hour)
				r.MinValue = 90
				r.MaxValue = 10
			},
			want: channeldomain.ErrChannelNotFound,
		},
		{
			name:   "non owner before date checks",
			caller: "mallory",
			mutate: func(r *domain.CreateTopicRequest) { r.EndTime = t0.Add(-time.Hour) },
			want:   domain.ErrNotChannelOwner,
		},
		{
			name:   "end time in the past",
			caller: "owner",
			mutate: func(r *domain.CreateTopicRequest) { r.EndTime = t0.Add(-3600 * time.Second) },
			want:   domain.ErrInvalidEndDate,
		},
		{
			name:   "end time equal to now",
			caller: "owner",
			mutate: func(r *domain.CreateTopicRequest) { r.EndTime = t0 },
			want:   domain.ErrInvalidEndDate,
		},
		{
			name:   "inverted range",
			caller: "owner",
			mutate: func(r *domain.CreateTopicRequest) { r.MinValue, r.MaxValue = 90, 10 },
			want:   domain.ErrInvalidValueRange,
		},
		{
			name:   "default outside range",
			caller: "owner",
			mutate: func(r *domain.CreateTopicRequest) { r.DefaultValue = 91 },
			want:   domain.ErrInvalidValueRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := f.svc.CreateTopic(as(tt.caller), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	count, err := f.svc.GetChannelTopicCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, ledgertest.Events(t, f.ledger, events.EventTopicCreated))
}

func TestCreateTopic_DegenerateRangeAllowed(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.MinValue, req.MaxValue, req.DefaultValue = 7, 7, 7
	_, err := f.svc.CreateTopic(as("owner"), req)
	assert.NoError(t, err)
}

func TestChannelTopics_InsertionOrder(t *testing.T) {
	f := newFixture(t)
	for _, ref := range []string{"a", "b", "c"} {
		req := validRequest()
		req.ContentRef = ref
		_, err := f.svc.CreateTopic(as("owner"), req)
		require.NoError(t, err)
	}

	topics, err := f.svc.GetChannelTopics(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, topics, 3)
	for i, ref := range []string{"a", "b", "c"} {
		assert.Equal(t, ref, topics[i].ContentRef)
		assert.Equal(t, uint64(i+1), topics[i].ID)
	}

	count, err := f.svc.GetChannelTopicCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = f.svc.GetChannelTopics(context.Background(), 42)
	assert.ErrorIs(t, err, channeldomain.ErrChannelNotFound)
}

func TestGetTopic_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetTopic(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
}

func TestCloseIfExpired(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateTopic(as("owner"), validRequest())
	require.NoError(t, err)

	before := clock.WithTime(context.Background(), created.EndTime.Add(-time.Second))
	got, err := f.svc.CloseIfExpired(before, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOpen, got.State)

	after := clock.WithTime(context.Background(), created.EndTime)
	got, err = f.svc.CloseIfExpired(after, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosed, got.State)
	require.NotNil(t, got.ClosedAt)

	got, err = f.svc.CloseIfExpired(after, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosed, got.State)
	assert.Len(t, ledgertest.Events(t, f.ledger, events.EventTopicClosed), 1)

	_, err = f.svc.CloseIfExpired(after, 404)
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
}

func TestCloseExpired_Sweep(t *testing.T) {
	f := newFixture(t)
	short := validRequest()
	short.EndTime = t0.Add(time.Hour)
	_, err := f.svc.CreateTopic(as("owner"), short)
	require.NoError(t, err)
	_, err = f.svc.CreateTopic(as("owner"), validRequest())
	require.NoError(t, err)

	ctx := clock.WithTime(context.Background(), t0.Add(2*time.Hour))
	n, err := f.svc.CloseExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	first, err := f.svc.GetTopic(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosed, first.State)

	second, err := f.svc.GetTopic(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOpen, second.State)
}
