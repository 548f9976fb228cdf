package accesspass

import "go.uber.org/fx"

var Module = fx.Module("accesspass",
	fx.Provide(NewFactory),
)
