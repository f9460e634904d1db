package payment

import (
	"context"
	"sync"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/sirupsen/logrus"
)

// Activator is the slice of the entitlement ledger the reconciler needs.
type Activator interface {
	ActivatePremium(ctx context.Context, userID string, durationInMonths int, source string) (*user.User, error)
}

// notification is one queued gateway signal, keyed by transaction id.
type notification struct {
	transactionID string
	status        string
	attempts      int
	firstSeen     time.Time
}

// Reconciler converges gateway webhooks and status polling on a single
// idempotent activation path. The queue is in-memory and process-local: a
// restart loses retry bookkeeping, which is fine because the pending
// transaction row survives and the polling sweep picks it up again.
type Reconciler struct {
	txns         Repository
	entitlements Activator
	gateways     *GatewayResolver
	cfg          *config.Reconciliation

	mu    sync.Mutex
	queue map[string]*notification

	now    func() time.Time
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewReconciler(txns Repository, entitlements Activator, gateways *GatewayResolver, cfg *config.Configuration) *Reconciler {
	return &Reconciler{
		txns:         txns,
		entitlements: entitlements,
		gateways:     gateways,
		cfg:          &cfg.Payment.Reconciliation,
		queue:        make(map[string]*notification),
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Enqueue registers a gateway signal for processing. Duplicate delivery for
// the same transaction overwrites the queued status; the conditional status
// flip downstream makes re-processing harmless.
func (r *Reconciler) Enqueue(transactionID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.queue[transactionID]; ok {
		existing.status = status
		return
	}
	r.queue[transactionID] = &notification{
		transactionID: transactionID,
		status:        status,
		firstSeen:     r.now(),
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"status":         status,
	}).Debug("Gateway notification queued")
}

// Start launches the retry drain loop and the pending-transaction poll loop.
func (r *Reconciler) Start() {
	r.wg.Add(2)

	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(time.Duration(r.cfg.RetrySeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.drainOnce(context.Background())
			case <-r.stopCh:
				return
			}
		}
	}()

	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(time.Duration(r.cfg.PollIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.pollOnce(context.Background())
			case <-r.stopCh:
				return
			}
		}
	}()

	logrus.Info("Payment reconciler started")
}

// Stop terminates both loops and waits for them to exit.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	logrus.Info("Payment reconciler stopped")
}

// drainOnce attempts every queued notification once, dropping entries that
// finished or exhausted their retry budget.
func (r *Reconciler) drainOnce(ctx context.Context) {
	r.mu.Lock()
	pending := make([]*notification, 0, len(r.queue))
	for _, n := range r.queue {
		pending = append(pending, n)
	}
	r.mu.Unlock()

	maxAge := time.Duration(r.cfg.MaxAgeMinutes) * time.Minute

	for _, n := range pending {
		n.attempts++
		done := r.process(ctx, n)

		abandoned := !done && (n.attempts >= r.cfg.MaxAttempts || r.now().Sub(n.firstSeen) >= maxAge)
		if abandoned {
			logrus.WithFields(logrus.Fields{
				"transaction_id": n.transactionID,
				"attempts":       n.attempts,
			}).Warn("Abandoning gateway notification, polling sweep will retry the transaction")
		}

		if done || abandoned {
			r.mu.Lock()
			delete(r.queue, n.transactionID)
			r.mu.Unlock()
		}
	}
}

// process applies one notification. Returns true when the entry is finished
// and false when it should be retried (transaction row not visible yet, or
// a transient store failure).
func (r *Reconciler) process(ctx context.Context, n *notification) bool {
	txn, err := r.txns.FindByTransactionID(ctx, n.transactionID)
	if err != nil {
		if err == models.ErrTransactionNotFound {
			// The webhook can race the initiate call; the row may appear
			// on a later attempt.
			logrus.WithField("transaction_id", n.transactionID).Debug("Transaction not found yet, will retry")
		} else {
			logrus.WithError(err).WithField("transaction_id", n.transactionID).Warn("Transaction lookup failed, will retry")
		}
		return false
	}

	switch n.status {
	case StatusCompleted:
		won, err := r.txns.CompleteIfPending(ctx, n.transactionID)
		if err != nil {
			return false
		}
		if !won {
			logrus.WithField("transaction_id", n.transactionID).Debug("Transaction already completed, skipping activation")
			return true
		}

		if _, err := r.entitlements.ActivatePremium(ctx, txn.UserID, txn.DurationInMonths, "transaction:"+txn.TransactionID); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"transaction_id": n.transactionID,
				"user_id":        txn.UserID,
			}).Error("Entitlement activation failed for completed transaction")
			return true
		}

		logrus.WithFields(logrus.Fields{
			"transaction_id": n.transactionID,
			"user_id":        txn.UserID,
			"months":         txn.DurationInMonths,
		}).Info("Transaction reconciled, premium activated")
		return true

	case StatusFailed, StatusCancelled:
		if err := r.txns.MarkStatusIfPending(ctx, n.transactionID, n.status); err != nil {
			return false
		}
		logrus.WithFields(logrus.Fields{
			"transaction_id": n.transactionID,
			"status":         n.status,
		}).Info("Transaction closed without activation")
		return true

	default:
		// Still pending at the gateway; nothing to apply.
		return true
	}
}

// pollOnce re-checks transactions stuck in pending past the grace window
// against the gateway status API and feeds the results into the same queue.
func (r *Reconciler) pollOnce(ctx context.Context) {
	cutoff := r.now().Add(-time.Duration(r.cfg.GraceMinutes) * time.Minute)

	txns, err := r.txns.FindPendingOlderThan(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Warn("Pending transaction sweep failed")
		return
	}

	for _, txn := range txns {
		gateway, err := r.gateways.Resolve(txn.PaymentGateway)
		if err != nil {
			logrus.WithField("gateway", txn.PaymentGateway).Warn("Pending transaction references unknown gateway")
			continue
		}

		ref := txn.GatewayRef
		if ref == "" {
			ref = txn.TransactionID
		}

		status, err := gateway.CheckStatus(ctx, ref)
		if err != nil {
			logrus.WithError(err).WithField("transaction_id", txn.TransactionID).Warn("Gateway status check failed")
			continue
		}

		if status == StatusPending {
			continue
		}
		r.Enqueue(txn.TransactionID, status)
	}
}
