package topic

import (
	"github.com/railzwaylabs/cipherpoll/internal/topic/repository"
	"github.com/railzwaylabs/cipherpoll/internal/topic/service"
	"go.uber.org/fx"
)

var Module = fx.Module("topic.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
