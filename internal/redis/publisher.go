package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/railzwaylabs/cipherpoll/internal/config"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lastEventKeySuffix = ":last_event_id"

// Envelope is the message published for every outbox event.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher fans outbox events out over redis pub/sub for off-process
// observers such as UIs.
type Publisher struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewPublisher(client *redis.Client, cfg config.Config, log *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: cfg.Redis.Channel,
		log:     log.Named("redis.publisher"),
	}
}

func (p *Publisher) Name() string { return "redis" }

func (p *Publisher) Enabled() bool { return p != nil && p.client != nil }

func (p *Publisher) Handle(ctx context.Context, evt ledgerdomain.Event) error {
	if !p.Enabled() {
		return nil
	}

	msg, err := json.Marshal(Envelope{
		ID:        strconv.FormatUint(evt.ID, 10),
		Type:      evt.Type,
		Payload:   json.RawMessage(evt.Payload),
		CreatedAt: evt.CreatedAt,
	})
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.channel, msg)
	pipe.Set(ctx, p.channel+lastEventKeySuffix, strconv.FormatUint(evt.ID, 10), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	p.log.Debug("event published", zap.String("type", evt.Type), zap.String("event_id", strconv.FormatUint(evt.ID, 10)))
	return nil
}

// LastPublished returns the id of the most recent published event.
func (p *Publisher) LastPublished(ctx context.Context) (string, error) {
	if !p.Enabled() {
		return "", nil
	}
	id, err := p.client.Get(ctx, p.channel+lastEventKeySuffix).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}
