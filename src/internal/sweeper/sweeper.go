package sweeper

import (
	"context"
	"sync"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/mailer"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/sirupsen/logrus"
)

// UserStore is the slice of the user repository the sweeper needs.
type UserStore interface {
	FindExpiredPremium(ctx context.Context, now time.Time) ([]*user.User, error)
	RevokePremium(ctx context.Context, userID string) error
	FindExpiringBetween(ctx context.Context, from, until time.Time) ([]*user.User, error)
	MarkWarned(ctx context.Context, userID string, at time.Time) error
}

// TransactionPruner removes abandoned non-completed transaction rows.
type TransactionPruner interface {
	DeleteStaleNonCompleted(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper demotes expired premium users, warns users approaching expiry and
// prunes abandoned transactions. One user failing never aborts the pass.
type Sweeper struct {
	users UserStore
	txns  TransactionPruner
	mail  mailer.Publisher
	cfg   *config.SubscriptionConfig

	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func New(users UserStore, txns TransactionPruner, mail mailer.Publisher, cfg *config.Configuration) *Sweeper {
	return &Sweeper{
		users:     users,
		txns:      txns,
		mail:      mail,
		cfg:       &cfg.Subscription,
		retention: time.Duration(cfg.Payment.Reconciliation.RetentionHours) * time.Hour,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs one sweep immediately, then schedules the expiry sweep and the
// warning pass on their configured intervals.
func (s *Sweeper) Start() {
	s.SweepOnce(context.Background())

	s.wg.Add(2)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(time.Duration(s.cfg.SweepIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.SweepOnce(context.Background())
			case <-s.stopCh:
				return
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(time.Duration(s.cfg.WarnIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.WarnOnce(context.Background())
			case <-s.stopCh:
				return
			}
		}
	}()

	logrus.Info("Expiry sweeper started")
}

// Stop terminates the schedules and waits for them to exit.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	logrus.Info("Expiry sweeper stopped")
}

// SweepOnce demotes every user whose premium expiry has passed, then prunes
// stale non-completed transactions.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.now()

	expired, err := s.users.FindExpiredPremium(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("Expiry sweep query failed")
	} else {
		for _, u := range expired {
			if err := s.users.RevokePremium(ctx, u.ID.Hex()); err != nil {
				logrus.WithError(err).WithField("user_id", u.ID.Hex()).Error("Failed to revoke expired premium")
				continue
			}

			logrus.WithFields(logrus.Fields{
				"user_id":    u.ID.Hex(),
				"expired_at": u.PremiumExpiresAt,
			}).Info("Premium expired, user demoted")

			s.mail.Send(&models.EmailMessage{
				To:   u.Email,
				Name: u.Name,
				Kind: models.EmailSubscriptionEnded,
			})
		}

		if len(expired) > 0 {
			logrus.WithField("count", len(expired)).Info("Expiry sweep completed")
		}
	}

	pruned, err := s.txns.DeleteStaleNonCompleted(ctx, now.Add(-s.retention))
	if err != nil {
		logrus.WithError(err).Error("Transaction retention sweep failed")
		return
	}
	if pruned > 0 {
		logrus.WithField("count", pruned).Info("Stale transactions pruned")
	}
}

// WarnOnce notifies users expiring within the warning window, at most once
// per subscription period.
func (s *Sweeper) WarnOnce(ctx context.Context) {
	now := s.now()
	until := now.Add(time.Duration(s.cfg.WarningDays) * 24 * time.Hour)

	expiring, err := s.users.FindExpiringBetween(ctx, now, until)
	if err != nil {
		logrus.WithError(err).Error("Expiry warning query failed")
		return
	}

	for _, u := range expiring {
		if err := s.users.MarkWarned(ctx, u.ID.Hex(), now); err != nil {
			logrus.WithError(err).WithField("user_id", u.ID.Hex()).Error("Failed to mark user warned")
			continue
		}

		data := map[string]string{}
		if u.PremiumExpiresAt != nil {
			data["expiresAt"] = u.PremiumExpiresAt.Format(time.RFC3339)
		}

		s.mail.Send(&models.EmailMessage{
			To:   u.Email,
			Name: u.Name,
			Kind: models.EmailExpiryWarning,
			Data: data,
		})

		logrus.WithField("user_id", u.ID.Hex()).Info("Expiry warning sent")
	}
}
