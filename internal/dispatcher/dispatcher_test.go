package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/events"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
	"github.com/railzwaylabs/cipherpoll/internal/ledger/ledgertest"
	"github.com/railzwaylabs/cipherpoll/internal/observability"
	cpredis "github.com/railzwaylabs/cipherpoll/internal/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Name() string { return "mock" }

func (m *MockSink) Handle(ctx context.Context, evt ledgerdomain.Event) error {
	args := m.Called(ctx, evt.Type)
	return args.Error(0)
}

func emit(t *testing.T, ex *ledger.Executor, eventType string, payload any) {
	ctx := context.Background()
	require.NoError(t, ex.Apply(ctx, func(tx *gorm.DB) error {
		return ex.Emit(ctx, tx, eventType, payload, t0)
	}))
}

func newDispatcher(ex *ledger.Executor, sinks ...Sink) *Dispatcher {
	return New(Params{
		Ledger:  ex,
		Log:     zap.NewNop(),
		Clock:   clock.Fixed{At: t0},
		Config:  config.Config{Scheduler: config.SchedulerConfig{BatchSize: 2}},
		Metrics: observability.NewMetrics(prometheus.NewRegistry()),
		Sinks:   sinks,
	})
}

type bestEffortMock struct {
	*MockSink
}

func (m bestEffortMock) Name() string { return "besteffort" }

func (m bestEffortMock) BestEffort() bool { return true }

func TestProcessEvents_FailedDeliveryIsRetried(t *testing.T) {
	ex := ledgertest.New(t)
	emit(t, ex, events.EventTopicCreated, events.TopicCreated{TopicID: 1})
	emit(t, ex, events.EventTopicClosed, events.TopicClosed{TopicID: 1})
	emit(t, ex, events.EventTopicFinalized, events.TopicFinalized{TopicID: 1, RevealedAggregate: 9})

	sink := new(MockSink)
	sink.On("Handle", mock.Anything, events.EventTopicCreated).Return(nil).Once()
	sink.On("Handle", mock.Anything, events.EventTopicClosed).Return(errors.New("down")).Once()
	sink.On("Handle", mock.Anything, events.EventTopicClosed).Return(nil).Once()
	sink.On("Handle", mock.Anything, events.EventTopicFinalized).Return(nil).Once()

	d := newDispatcher(ex, sink, nil)

	n, err := d.ProcessEvents(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	n, err = d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = d.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	sink.AssertNumberOfCalls(t, "Handle", 4)
	sink.AssertExpectations(t)
}

func TestProcessEvents_BestEffortSinkSkipsFailures(t *testing.T) {
	ex := ledgertest.New(t)
	emit(t, ex, events.EventTopicCreated, events.TopicCreated{TopicID: 1})
	emit(t, ex, events.EventTopicClosed, events.TopicClosed{TopicID: 1})

	inner := new(MockSink)
	inner.On("Handle", mock.Anything, events.EventTopicCreated).Return(errors.New("down")).Once()
	inner.On("Handle", mock.Anything, events.EventTopicClosed).Return(nil).Once()

	d := newDispatcher(ex, bestEffortMock{inner})

	n, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = d.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	inner.AssertExpectations(t)
}

func TestProcessEvents_WebhookRedeliveredWithoutBlockingOtherSinks(t *testing.T) {
	var (
		failing  = true
		received []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		received = append(received, r.Header.Get(HeaderEvent))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ex := ledgertest.New(t)
	emit(t, ex, events.EventTopicCreated, events.TopicCreated{TopicID: 1})
	emit(t, ex, events.EventTopicClosed, events.TopicClosed{TopicID: 1})
	emit(t, ex, events.EventTopicFinalized, events.TopicFinalized{TopicID: 1})

	other := new(MockSink)
	other.On("Handle", mock.Anything, mock.Anything).Return(nil).Times(3)

	webhook := NewWebhookSink(config.Config{Dispatcher: config.DispatcherConfig{WebhookURL: srv.URL}})
	d := newDispatcher(ex, webhook, other)

	n, err := d.Drain(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, n)
	other.AssertExpectations(t)

	offset, err := ex.ConsumerOffset(context.Background(), consumerFor(webhook))
	require.NoError(t, err)
	assert.Zero(t, offset)

	failing = false
	n, err = d.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = d.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{events.EventTopicCreated, events.EventTopicClosed, events.EventTopicFinalized}, received)
	other.AssertNumberOfCalls(t, "Handle", 3)
}

func TestAccessPassSink_MintsFromPurchase(t *testing.T) {
	ex := ledgertest.New(t, &accesspass.AccessPass{})
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	factory, err := accesspass.NewFactory(accesspass.Params{
		DB:    ex.DB(),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.Fixed{At: t0},
	})
	require.NoError(t, err)

	emit(t, ex, events.EventSubscriptionPurchased, events.SubscriptionPurchased{
		Subscriber: "bob",
		ChannelID:  4,
		ExpiresAt:  t0.Add(30 * 24 * time.Hour),
	})
	emit(t, ex, events.EventTopicCreated, events.TopicCreated{TopicID: 1})

	d := newDispatcher(ex, NewAccessPassSink(factory))
	_, err = d.Drain(context.Background())
	require.NoError(t, err)

	pass, err := factory.Get(context.Background(), "bob", 4)
	require.NoError(t, err)
	payload, err := factory.Verify(context.Background(), pass.Document)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), payload.ChannelID)
}

func TestWebhookSink(t *testing.T) {
	var gotType string
	var deliveries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get(HeaderEvent)
		deliveries = append(deliveries, r.Header.Get(HeaderDeliveryID))
		if gotType == events.EventTopicClosed {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(config.Config{Dispatcher: config.DispatcherConfig{WebhookURL: srv.URL}})
	ctx := context.Background()

	require.NoError(t, sink.Handle(ctx, ledgerdomain.Event{ID: 1, Type: events.EventTopicCreated, Payload: []byte(`{}`)}))
	assert.Equal(t, events.EventTopicCreated, gotType)
	assert.Error(t, sink.Handle(ctx, ledgerdomain.Event{ID: 2, Type: events.EventTopicClosed, Payload: []byte(`{}`)}))
	require.Len(t, deliveries, 2)
	assert.NotEmpty(t, deliveries[0])
	assert.NotEqual(t, deliveries[0], deliveries[1])

	disabled := NewWebhookSink(config.Config{})
	assert.NoError(t, disabled.Handle(ctx, ledgerdomain.Event{Type: events.EventTopicCreated}))
}

func TestRedisSinkReceivesEvents(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	rdb := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	defer rdb.Close()
	pub := cpredis.NewPublisher(rdb, config.Config{Redis: config.RedisConfig{Channel: "events"}}, zap.NewNop())

	ex := ledgertest.New(t)
	emit(t, ex, events.EventChannelCreated, events.ChannelCreated{ChannelID: 1, Owner: "alice"})

	d := newDispatcher(ex, pub)
	_, err = d.Drain(context.Background())
	require.NoError(t, err)

	evts, err := ex.EventsAfter(context.Background(), 0, 10)
	require.NoError(t, err)
	last, err := pub.LastPublished(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(evts[0].ID, 10), last)
}
