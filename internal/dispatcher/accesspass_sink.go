package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
	"github.com/railzwaylabs/cipherpoll/internal/events"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
)

// AccessPassSink mints or extends the subscriber's access pass after each
// purchase. Minting is best effort; a failure is logged and never retried.
type AccessPassSink struct {
	factory *accesspass.Factory
}

func NewAccessPassSink(f *accesspass.Factory) *AccessPassSink {
	return &AccessPassSink{factory: f}
}

func (s *AccessPassSink) Name() string { return "accesspass" }

func (s *AccessPassSink) BestEffort() bool { return true }

func (s *AccessPassSink) Handle(ctx context.Context, evt ledgerdomain.Event) error {
	if evt.Type != events.EventSubscriptionPurchased {
		return nil
	}
	var payload events.SubscriptionPurchased
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return err
	}
	_, err := s.factory.MintOrExtend(ctx, payload.Subscriber, payload.ChannelID, payload.ExpiresAt)
	return err
}
