package payment

import (
	"context"
	"testing"
	"time"

	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// observingGateway records the store state at invoice-creation time.
type observingGateway struct {
	fakeGateway
	onCreate func(transactionID string)
}

func (g *observingGateway) CreateInvoice(ctx context.Context, transactionID string, amount int64, description string) (*clients.Invoice, error) {
	if g.onCreate != nil {
		g.onCreate(transactionID)
	}
	return g.fakeGateway.CreateInvoice(ctx, transactionID, amount, description)
}

func serviceConfig() *config.Configuration {
	cfg := reconcilerConfig()
	cfg.App = config.Application{Name: "quizhub", Timeout: 10}
	cfg.Payment.Plans = []config.Plan{
		{ID: "1-month", Amount: 5000, DurationInMonths: 1},
		{ID: "3-months", Amount: 13500, DurationInMonths: 3},
	}
	return cfg
}

func TestInitiateCreatesPendingBeforeGatewayCall(t *testing.T) {
	store := newFakeTxnStore()

	var statusAtInvoiceTime string
	gateway := &observingGateway{onCreate: func(transactionID string) {
		statusAtInvoiceTime = store.status(transactionID)
	}}

	svc := NewPaymentService(store, NewGatewayResolver(gateway, &fakeGateway{}), serviceConfig())

	resp, err := svc.Initiate(context.Background(), "user-1", &InitiateRequest{
		PlanID:  "1-month",
		Gateway: GatewayPayDunya,
	})
	require.NoError(t, err)

	// An early webhook must find the row, so it exists before the gateway
	// learns the transaction id.
	assert.Equal(t, StatusPending, statusAtInvoiceTime)
	assert.NotEmpty(t, resp.TransactionID)
	assert.NotEmpty(t, resp.RedirectURL)

	txn, err := store.FindByTransactionID(context.Background(), resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), txn.Amount)
	assert.Equal(t, 1, txn.DurationInMonths)
	assert.Equal(t, "ref-"+resp.TransactionID, txn.GatewayRef)
}

func TestInitiateUnknownPlan(t *testing.T) {
	svc := NewPaymentService(newFakeTxnStore(), NewGatewayResolver(&fakeGateway{}, &fakeGateway{}), serviceConfig())

	_, err := svc.Initiate(context.Background(), "user-1", &InitiateRequest{
		PlanID:  "lifetime",
		Gateway: GatewayPayDunya,
	})
	assert.ErrorIs(t, err, models.ErrUnknownPlan)
}

func TestInitiateUnknownGateway(t *testing.T) {
	store := newFakeTxnStore()
	svc := NewPaymentService(store, NewGatewayResolver(&fakeGateway{}, &fakeGateway{}), serviceConfig())

	_, err := svc.Initiate(context.Background(), "user-1", &InitiateRequest{
		PlanID:  "1-month",
		Gateway: "cash",
	})
	assert.ErrorIs(t, err, models.ErrUnknownGateway)

	// Resolution happens before the row is written.
	pending, err := store.FindPendingOlderThan(context.Background(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInitiateGatewayFailureMarksTransactionFailed(t *testing.T) {
	store := newFakeTxnStore()
	gateway := &fakeGateway{err: models.ErrGatewayUnavailable}
	svc := NewPaymentService(store, NewGatewayResolver(gateway, &fakeGateway{}), serviceConfig())

	_, err := svc.Initiate(context.Background(), "user-1", &InitiateRequest{
		PlanID:  "1-month",
		Gateway: GatewayPayDunya,
	})
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)

	// The orphaned row is closed, not left pending for the poller.
	pending, findErr := store.FindPendingOlderThan(context.Background(), time.Now().Add(time.Minute))
	require.NoError(t, findErr)
	assert.Empty(t, pending)
}
