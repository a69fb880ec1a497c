// internal/domain/payment/gateway.go
package payment

import (
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/your-org/lpg-storefront/internal/config"
)

// Gateway creates hosted payment pages. *snap.Client satisfies it.
type Gateway interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// NewSnapGateway returns a Snap client for the configured environment.
func NewSnapGateway(cfg *config.Config) *snap.Client {
	env := midtrans.Sandbox
	if cfg.IsProduction() {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(cfg.Payment.ServerKey, env)
	return &client
}
