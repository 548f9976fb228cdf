package subscription

import (
	"github.com/railzwaylabs/cipherpoll/internal/subscription/repository"
	"github.com/railzwaylabs/cipherpoll/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
