package encryption

import (
	"context"

	"github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("encryption",
	fx.Provide(LoadKeyPair),
	fx.Provide(NewCoprocessor),
	fx.Provide(func(c *Coprocessor) domain.Scheme { return c.Scheme() }),
	fx.Provide(func(c *Coprocessor) domain.Oracle { return c }),
)

// RunCoprocessor starts the asynchronous decryption loop with the app.
func RunCoprocessor(lc fx.Lifecycle, c *Coprocessor) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				_ = c.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
