package clock

import (
	"context"
	"time"
)

type key string

var simulatedTimeKey key = "simulated_time"

// WithTime returns a context whose ledger time is pinned to t.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, simulatedTimeKey, t.UTC())
}

// FromContext returns the simulated ledger time from the context, if present.
func FromContext(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	t, ok := ctx.Value(simulatedTimeKey).(time.Time)
	return t, ok
}
