// Package ledgertest builds an Executor over a throwaway database.
package ledgertest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
	"github.com/railzwaylabs/cipherpoll/pkg/db/dbtest"
	"go.uber.org/zap"
)

// New migrates the ledger tables plus models and returns an Executor on top.
func New(t testing.TB, models ...any) *ledger.Executor {
	t.Helper()

	all := append([]any{
		&ledgerdomain.Sequence{},
		&ledgerdomain.Event{},
		&ledgerdomain.ConsumerOffset{},
	}, models...)
	conn := dbtest.Open(t, all...)

	return ledger.NewExecutor(ledger.Params{DB: conn, Log: zap.NewNop()})
}

// Events returns every outbox event of the given type, oldest first.
func Events(t testing.TB, ex *ledger.Executor, eventType string) []ledgerdomain.Event {
	t.Helper()

	all, err := ex.EventsAfter(context.Background(), 0, 10_000)
	if err != nil {
		t.Fatal(err)
	}
	var out []ledgerdomain.Event
	for _, e := range all {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Decode unmarshals an event payload into v.
func Decode(t testing.TB, e ledgerdomain.Event, v any) {
	t.Helper()
	if err := json.Unmarshal(e.Payload, v); err != nil {
		t.Fatal(err)
	}
}
