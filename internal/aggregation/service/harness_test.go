package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	aggdomain "github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	aggrepo "github.com/railzwaylabs/cipherpoll/internal/aggregation/repository"
	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	channelrepo "github.com/railzwaylabs/cipherpoll/internal/channel/repository"
	channelservice "github.com/railzwaylabs/cipherpoll/internal/channel/service"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/encryption"
	encdomain "github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	"github.com/railzwaylabs/cipherpoll/internal/ledger/ledgertest"
	"github.com/railzwaylabs/cipherpoll/internal/observability"
	paymentdomain "github.com/railzwaylabs/cipherpoll/internal/payment/domain"
	paymentrepo "github.com/railzwaylabs/cipherpoll/internal/payment/repository"
	paymentservice "github.com/railzwaylabs/cipherpoll/internal/payment/service"
	subdomain "github.com/railzwaylabs/cipherpoll/internal/subscription/domain"
	subrepo "github.com/railzwaylabs/cipherpoll/internal/subscription/repository"
	subservice "github.com/railzwaylabs/cipherpoll/internal/subscription/service"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
	topicrepo "github.com/railzwaylabs/cipherpoll/internal/topic/repository"
	topicservice "github.com/railzwaylabs/cipherpoll/internal/topic/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

const retryAfter = 5 * time.Minute

// countingOracle records how many decryptions were requested.
type countingOracle struct {
	*encryption.Coprocessor
	requests int
}

func (o *countingOracle) RequestDecrypt(ctx context.Context, ct encdomain.Ciphertext) (string, error) {
	o.requests++
	return o.Coprocessor.RequestDecrypt(ctx, ct)
}

type harness struct {
	t        *testing.T
	ledger   *ledger.Executor
	scheme   encdomain.Scheme
	copro    *encryption.Coprocessor
	oracle   *countingOracle
	metrics  *observability.Metrics
	channels channeldomain.Service
	topics   topicdomain.Service
	subs     subdomain.Service
	payments paymentdomain.Service
	agg      aggdomain.Service
}

func newHarness(t *testing.T, pair encryption.KeyPair) *harness {
	t.Helper()

	ex := ledgertest.New(t,
		&channeldomain.Channel{}, &channeldomain.Tier{},
		&topicdomain.Topic{}, &subdomain.Subscription{},
		&paymentdomain.Balance{}, &aggdomain.Participation{},
	)
	log := zap.NewNop()
	clk := clock.Fixed{At: t0}
	cfg := config.Config{
		Payment:     config.PaymentConfig{DefaultToken: "USDC"},
		Aggregation: config.AggregationConfig{DecryptRetryAfter: retryAfter},
	}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	copro := encryption.NewCoprocessor(pair, log, metrics)
	oracle := &countingOracle{Coprocessor: copro}

	chRepo := channelrepo.Provide()
	tRepo := topicrepo.Provide()
	sRepo := subrepo.Provide()

	payments := paymentservice.New(paymentservice.Params{Ledger: ex, Log: log, Clock: clk, Repo: paymentrepo.Provide()})
	h := &harness{
		t:        t,
		ledger:   ex,
		scheme:   pair.Scheme,
		copro:    copro,
		oracle:   oracle,
		metrics:  metrics,
		payments: payments,
		channels: channelservice.New(channelservice.Params{
			Ledger: ex, Log: log, Clock: clk, Config: cfg, Repo: chRepo,
		}),
		topics: topicservice.New(topicservice.Params{
			Ledger: ex, Log: log, Clock: clk, Scheme: pair.Scheme, Repo: tRepo, ChannelRepo: chRepo,
		}),
		subs: subservice.New(subservice.Params{
			Ledger: ex, Log: log, Clock: clk, Repo: sRepo, ChannelRepo: chRepo, Payment: payments,
		}),
		agg: New(Params{
			Ledger:    ex,
			Log:       log,
			Clock:     clk,
			Config:    cfg,
			Metrics:   metrics,
			Scheme:    pair.Scheme,
			Oracle:    oracle,
			Repo:      aggrepo.Provide(),
			TopicRepo: tRepo,
			SubRepo:   sRepo,
		}),
	}
	copro.OnDecrypted(h.agg.OnDecrypted)
	return h
}

func as(who string) context.Context {
	return identity.WithCaller(context.Background(), who)
}

func asAt(who string, at time.Time) context.Context {
	return clock.WithTime(as(who), at)
}

func at(ts time.Time) context.Context {
	return clock.WithTime(context.Background(), ts)
}

// channelWithTopic creates channel "C" with one monthly tier priced 100 and a
// topic ending one day after t0.
func (h *harness) channelWithTopic(minValue, maxValue, defaultValue int64) *topicdomain.Topic {
	h.t.Helper()

	_, err := h.channels.CreateChannel(as("owner"), channeldomain.CreateChannelRequest{
		Name:  "C",
		Tiers: []channeldomain.TierInput{{DurationClass: "month", Price: 100}},
	})
	require.NoError(h.t, err)

	topic, err := h.topics.CreateTopic(as("owner"), topicdomain.CreateTopicRequest{
		ChannelID:    1,
		ContentRef:   "ipfs://question",
		EndTime:      t0.Add(86400 * time.Second),
		MinValue:     minValue,
		MaxValue:     maxValue,
		DefaultValue: defaultValue,
	})
	require.NoError(h.t, err)
	return topic
}

func (h *harness) subscribe(who string) {
	h.t.Helper()
	_, err := h.payments.Credit(context.Background(), "USDC", who, 100)
	require.NoError(h.t, err)
	_, err = h.subs.Subscribe(as(who), subdomain.SubscribeRequest{ChannelID: 1, TierIndex: 0, Amount: 100})
	require.NoError(h.t, err)
}

func (h *harness) encrypt(v int64) encdomain.Ciphertext {
	h.t.Helper()
	ct, err := h.scheme.Encrypt(v)
	require.NoError(h.t, err)
	return ct
}

func (h *harness) submit(who string, topicID uint64, v int64) error {
	_, err := h.agg.Submit(as(who), aggdomain.SubmitRequest{TopicID: topicID, Ciphertext: h.encrypt(v)})
	return err
}
