package payment

import (
	"context"

	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/models"
)

// GatewayClient is the opaque payment gateway surface: create a checkout
// invoice, check a transaction's status. Both calls carry bounded timeouts
// inside the concrete clients.
type GatewayClient interface {
	CreateInvoice(ctx context.Context, transactionID string, amount int64, description string) (*clients.Invoice, error)
	CheckStatus(ctx context.Context, gatewayRef string) (string, error)
}

// GatewayResolver maps a gateway name to its client.
type GatewayResolver struct {
	gateways map[string]GatewayClient
}

func NewGatewayResolver(paydunya, kkiapay GatewayClient) *GatewayResolver {
	return &GatewayResolver{
		gateways: map[string]GatewayClient{
			GatewayPayDunya: paydunya,
			GatewayKkiaPay:  kkiapay,
		},
	}
}

func (r *GatewayResolver) Resolve(name string) (GatewayClient, error) {
	gw, ok := r.gateways[name]
	if !ok {
		return nil, models.ErrUnknownGateway
	}
	return gw, nil
}
