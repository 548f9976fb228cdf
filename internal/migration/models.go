package migration

import (
	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
	aggdomain "github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
	paymentdomain "github.com/railzwaylabs/cipherpoll/internal/payment/domain"
	subdomain "github.com/railzwaylabs/cipherpoll/internal/subscription/domain"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
)

// Models lists every persisted model. Drivers without embedded SQL
// migrations get their schema from gorm AutoMigrate over this list.
func Models() []any {
	return []any{
		&ledgerdomain.Sequence{},
		&ledgerdomain.Event{},
		&ledgerdomain.ConsumerOffset{},
		&channeldomain.Channel{},
		&channeldomain.Tier{},
		&topicdomain.Topic{},
		&aggdomain.Participation{},
		&subdomain.Subscription{},
		&paymentdomain.Balance{},
		&accesspass.AccessPass{},
		&SchemaState{},
	}
}
