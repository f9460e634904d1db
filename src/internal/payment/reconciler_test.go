package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTxnStore struct {
	mu   sync.Mutex
	txns map[string]*Transaction
}

func newFakeTxnStore() *fakeTxnStore {
	return &fakeTxnStore{txns: map[string]*Transaction{}}
}

func (f *fakeTxnStore) Insert(_ context.Context, txn *Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txns[txn.TransactionID] = txn
	return nil
}

func (f *fakeTxnStore) FindByTransactionID(_ context.Context, transactionID string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[transactionID]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (f *fakeTxnStore) SetGatewayRef(_ context.Context, transactionID, gatewayRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn, ok := f.txns[transactionID]; ok {
		txn.GatewayRef = gatewayRef
	}
	return nil
}

func (f *fakeTxnStore) CompleteIfPending(_ context.Context, transactionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[transactionID]
	if !ok || txn.Status != StatusPending {
		return false, nil
	}
	now := time.Now()
	txn.Status = StatusCompleted
	txn.CompletedAt = &now
	return true, nil
}

func (f *fakeTxnStore) MarkStatusIfPending(_ context.Context, transactionID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn, ok := f.txns[transactionID]; ok && txn.Status == StatusPending {
		txn.Status = status
	}
	return nil
}

func (f *fakeTxnStore) FindPendingOlderThan(_ context.Context, cutoff time.Time) ([]*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Transaction
	for _, txn := range f.txns {
		if txn.Status == StatusPending && txn.CreatedAt.Before(cutoff) {
			copied := *txn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeTxnStore) DeleteStaleNonCompleted(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, txn := range f.txns {
		if txn.Status != StatusCompleted && txn.CreatedAt.Before(cutoff) {
			delete(f.txns, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTxnStore) status(transactionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn, ok := f.txns[transactionID]; ok {
		return txn.Status
	}
	return ""
}

type fakeActivator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeActivator) ActivatePremium(_ context.Context, userID string, _ int, source string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID+"/"+source)
	return &user.User{}, nil
}

func (f *fakeActivator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGateway struct {
	status string
	err    error
}

func (f *fakeGateway) CreateInvoice(_ context.Context, transactionID string, _ int64, _ string) (*clients.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &clients.Invoice{
		GatewayRef:  "ref-" + transactionID,
		RedirectURL: "https://checkout.example/" + transactionID,
	}, nil
}

func (f *fakeGateway) CheckStatus(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.status, nil
}

func reconcilerConfig() *config.Configuration {
	return &config.Configuration{
		Payment: config.PaymentConfig{
			Reconciliation: config.Reconciliation{
				GraceMinutes:        5,
				RetrySeconds:        30,
				MaxAttempts:         3,
				MaxAgeMinutes:       60,
				PollIntervalMinutes: 5,
				RetentionHours:      24,
			},
		},
	}
}

func pendingTxn(id, userID string, createdAt time.Time) *Transaction {
	return &Transaction{
		TransactionID:    id,
		UserID:           userID,
		Amount:           5000,
		DurationInMonths: 1,
		PlanID:           "1-month",
		Status:           StatusPending,
		PaymentGateway:   GatewayPayDunya,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func (r *Reconciler) queueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func TestReconcilerCompletesPendingTransaction(t *testing.T) {
	store := newFakeTxnStore()
	activator := &fakeActivator{}
	r := NewReconciler(store, activator, NewGatewayResolver(&fakeGateway{}, &fakeGateway{}), reconcilerConfig())

	store.Insert(context.Background(), pendingTxn("txn-1", "user-1", time.Now()))

	r.Enqueue("txn-1", StatusCompleted)
	r.drainOnce(context.Background())

	assert.Equal(t, StatusCompleted, store.status("txn-1"))
	assert.Equal(t, 1, activator.count())
	assert.Equal(t, 0, r.queueLen())
}

func TestReconcilerDuplicateDeliveryActivatesOnce(t *testing.T) {
	store := newFakeTxnStore()
	activator := &fakeActivator{}
	r := NewReconciler(store, activator, NewGatewayResolver(&fakeGateway{}, &fakeGateway{}), reconcilerConfig())

	store.Insert(context.Background(), pendingTxn("txn-1", "user-1", time.Now()))

	// Duplicate delivery before processing collapses in the queue.
	r.Enqueue("txn-1", StatusCompleted)
	r.Enqueue("txn-1", StatusCompleted)
	r.drainOnce(context.Background())

	// Re-delivery after processing loses the conditional status flip.
	r.Enqueue("txn-1", StatusCompleted)
	r.drainOnce(context.Background())

	assert.Equal(t, 1, activator.count())
	assert.Equal(t, 0, r.queueLen())
}

func TestReconcilerRetriesUntilTransactionVisible(t *testing.T) {
	store := newFakeTxnStore()
	activator := &fakeActivator{}
	r := NewReconciler(store, activator, NewGatewayResolver(&fakeGateway{}, &fakeGateway{}), reconcilerConfig())

	// Webhook raced the initiate call: the row is not there yet.
	r.Enqueue("txn-1", StatusCompleted)
	r.drainOnce(context.Background())

	assert.Equal(t, 0, activator.count())
	assert.Equal(t, 1, r.queueLen())

	store.Insert(context.Background(), pendingTxn("txn-1", "user-1", time.Now()))
	r.drainOnce(context.Background())

	assert.Equal(t, 1, activator.count())
	assert.Equal(t, 0, r.queueLen())
}

func TestReconcilerAbandonsAfterMaxAttempts(t *testing.T) {
	store := newFakeTxnStore()
	activator := &fakeActivator{}
	cfg := reconcilerConfig()
	r := NewReconciler(store, activator, NewGatewayResolver(&fakeGateway{}, &fakeGateway{}), cfg)

	r.Enqueue("txn-missing", StatusCompleted)
	for i := 0; i < cfg.Payment.Reconciliation.MaxAttempts; i++ {
		r.drainOnce(context.Background())
	}

	assert.Equal(t, 0, activator.count())
	assert.Equal(t, 0, r.queueLen())
}

func TestReconcilerClosesFailedWithoutActivation(t *testing.T) {
	store := newFakeTxnStore()
	activator := &fakeActivator{}
	r := NewReconciler(store, activator, NewGatewayResolver(&fakeGateway{}, &fakeGateway{}), reconcilerConfig())

	store.Insert(context.Background(), pendingTxn("txn-1", "user-1", time.Now()))

	r.Enqueue("txn-1", StatusFailed)
	r.drainOnce(context.Background())

	assert.Equal(t, StatusFailed, store.status("txn-1"))
	assert.Equal(t, 0, activator.count())
}

func TestReconcilerPollFeedsQueue(t *testing.T) {
	store := newFakeTxnStore()
	activator := &fakeActivator{}
	gateway := &fakeGateway{status: StatusCompleted}
	r := NewReconciler(store, activator, NewGatewayResolver(gateway, &fakeGateway{}), reconcilerConfig())

	// Stuck past the grace window with no webhook ever delivered.
	store.Insert(context.Background(), pendingTxn("txn-1", "user-1", time.Now().Add(-10*time.Minute)))

	r.pollOnce(context.Background())
	require.Equal(t, 1, r.queueLen())

	r.drainOnce(context.Background())
	assert.Equal(t, StatusCompleted, store.status("txn-1"))
	assert.Equal(t, 1, activator.count())
}

func TestReconcilerPollSkipsRecentAndStillPending(t *testing.T) {
	store := newFakeTxnStore()
	gateway := &fakeGateway{status: StatusPending}
	r := NewReconciler(store, &fakeActivator{}, NewGatewayResolver(gateway, &fakeGateway{}), reconcilerConfig())

	// Inside the grace window: the webhook still has time to arrive.
	store.Insert(context.Background(), pendingTxn("txn-recent", "user-1", time.Now()))
	// Past the window but the gateway still reports pending.
	store.Insert(context.Background(), pendingTxn("txn-old", "user-2", time.Now().Add(-10*time.Minute)))

	r.pollOnce(context.Background())
	assert.Equal(t, 0, r.queueLen())
}

func TestReconcilerStartStop(t *testing.T) {
	store := newFakeTxnStore()
	r := NewReconciler(store, &fakeActivator{}, NewGatewayResolver(&fakeGateway{}, &fakeGateway{}), reconcilerConfig())

	r.Start()

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop in time")
	}
}
