package dispatcher

import (
	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/redis"
	"go.uber.org/fx"
)

const sinkGroup = `group:"dispatcher_sinks"`

var Module = fx.Module("dispatcher",
	fx.Provide(
		fx.Annotate(func(f *accesspass.Factory) Sink { return NewAccessPassSink(f) }, fx.ResultTags(sinkGroup)),
		fx.Annotate(func(cfg config.Config) Sink { return NewWebhookSink(cfg) }, fx.ResultTags(sinkGroup)),
		fx.Annotate(func(p *redis.Publisher) Sink { return p }, fx.ResultTags(sinkGroup)),
	),
	fx.Provide(New),
)
