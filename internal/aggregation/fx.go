package aggregation

import (
	"github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	"github.com/railzwaylabs/cipherpoll/internal/aggregation/repository"
	"github.com/railzwaylabs/cipherpoll/internal/aggregation/service"
	"github.com/railzwaylabs/cipherpoll/internal/encryption"
	"go.uber.org/fx"
)

var Module = fx.Module("aggregation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(registerDecryptionHandler),
)

func registerDecryptionHandler(c *encryption.Coprocessor, svc domain.Service) {
	c.OnDecrypted(svc.OnDecrypted)
}
