package clock

import (
	"context"
	"time"

	"go.uber.org/fx"
)

// Clock supplies ledger time. Every state transition reads "now" through it so
// that expiry checks stay deterministic within one operation.
type Clock interface {
	Now(ctx context.Context) time.Time
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
