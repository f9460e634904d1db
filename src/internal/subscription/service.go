package subscription

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/mailer"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/sirupsen/logrus"
)

// UserStore is the slice of the user repository the ledger needs.
type UserStore interface {
	FindByID(ctx context.Context, userID string) (*user.User, error)
	SetPremium(ctx context.Context, userID string, expiresAt time.Time) error
}

// Service is the entitlement ledger: the only component allowed to read or
// mutate the raw premium fields.
type Service interface {
	ActivatePremium(ctx context.Context, userID string, durationInMonths int, source string) (*user.User, error)
	RedeemAccessCode(ctx context.Context, userID, code string) (*user.User, error)
	IssueAccessCode(ctx context.Context, userID string, durationInMonths int) (*AccessCode, error)
	ResendAccessCode(ctx context.Context, userID string) error
	Entitlement(ctx context.Context, userID string) (*Entitlement, error)
}

type service struct {
	users UserStore
	codes Repository
	mail  mailer.Publisher
	cfg   *config.SubscriptionConfig
}

func NewService(users UserStore, codes Repository, mail mailer.Publisher, cfg *config.Configuration) Service {
	return &service{
		users: users,
		codes: codes,
		mail:  mail,
		cfg:   &cfg.Subscription,
	}
}

// ActivatePremium grants or extends the premium entitlement. Renewals extend
// from the current expiry, never reset it: the new expiry is
// max(now, currentExpiry) + duration. Idempotence per source is the caller's
// duty - the one-time guard (transaction status flip or access code used
// flip) must have been consumed before this is called.
func (s *service) ActivatePremium(ctx context.Context, userID string, durationInMonths int, source string) (*user.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	base := now
	if u.IsPremiumActive(now) && u.PremiumExpiresAt != nil {
		base = *u.PremiumExpiresAt
	}
	expiresAt := base.AddDate(0, durationInMonths, 0)

	if err := s.users.SetPremium(ctx, userID, expiresAt); err != nil {
		return nil, err
	}

	u.IsPremium = true
	u.PremiumExpiresAt = &expiresAt
	u.PremiumWarnedAt = nil

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"months":     durationInMonths,
		"expires_at": expiresAt,
		"source":     source,
	}).Info("Premium entitlement activated")

	s.mail.Send(&models.EmailMessage{
		To:   u.Email,
		Name: u.Name,
		Kind: models.EmailPremiumActivated,
		Data: map[string]string{
			"expiresAt": expiresAt.Format(time.RFC3339),
		},
	})

	return u, nil
}

// RedeemAccessCode validates and consumes a code, then activates premium.
// Every failure is collapsed into ErrAccessCodeInvalid so the caller can not
// tell a wrong code from an expired or already-used one.
func (s *service) RedeemAccessCode(ctx context.Context, userID, code string) (*user.User, error) {
	ac, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		logrus.WithField("user_id", userID).Debug("Access code not found")
		return nil, models.ErrAccessCodeInvalid
	}

	if ac.UserID != userID {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"owner":   ac.UserID,
		}).Warn("Access code redeemed by non-owner")
		return nil, models.ErrAccessCodeInvalid
	}

	if ac.Used {
		logrus.WithField("user_id", userID).Debug("Access code already used")
		return nil, models.ErrAccessCodeInvalid
	}

	if time.Now().After(ac.ExpiresAt) {
		logrus.WithField("user_id", userID).Debug("Access code expired")
		return nil, models.ErrAccessCodeInvalid
	}

	// Conditional flip: a concurrent redeem of the same code loses here.
	if err := s.codes.MarkUsed(ctx, code); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Debug("Access code guard already consumed")
		return nil, models.ErrAccessCodeInvalid
	}

	return s.ActivatePremium(ctx, userID, ac.DurationInMonths, "access_code")
}

// IssueAccessCode creates a fresh single-use code and mails it to the user.
func (s *service) IssueAccessCode(ctx context.Context, userID string, durationInMonths int) (*AccessCode, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		logrus.WithError(err).Error("Failed to generate access code")
		return nil, err
	}

	now := time.Now()
	ac := &AccessCode{
		Code:             code,
		UserID:           userID,
		Email:            u.Email,
		DurationInMonths: durationInMonths,
		Used:             false,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(s.cfg.AccessCodeTTLMinutes) * time.Minute),
	}

	if err := s.codes.Insert(ctx, ac); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"expires_at": ac.ExpiresAt,
	}).Info("Access code issued")

	s.mail.Send(&models.EmailMessage{
		To:   u.Email,
		Name: u.Name,
		Kind: models.EmailAccessCode,
		Data: map[string]string{
			"code":      code,
			"expiresAt": ac.ExpiresAt.Format(time.RFC3339),
		},
	})

	return ac, nil
}

// ResendAccessCode re-mails the user's latest unused code, or issues a fresh
// one with the same duration when the previous code has expired.
func (s *service) ResendAccessCode(ctx context.Context, userID string) error {
	ac, err := s.codes.FindLatestByUser(ctx, userID)
	if err != nil {
		return models.ErrAccessCodeInvalid
	}

	if ac.Used {
		return models.ErrAccessCodeInvalid
	}

	if time.Now().After(ac.ExpiresAt) {
		_, err := s.IssueAccessCode(ctx, userID, ac.DurationInMonths)
		return err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	s.mail.Send(&models.EmailMessage{
		To:   u.Email,
		Name: u.Name,
		Kind: models.EmailAccessCode,
		Data: map[string]string{
			"code":      ac.Code,
			"expiresAt": ac.ExpiresAt.Format(time.RFC3339),
		},
	})

	logrus.WithField("user_id", userID).Info("Access code resent")
	return nil
}

// Entitlement computes the derived premium state. Callers must use this, not
// the raw stored flag, so access control never depends on sweep timing.
func (s *service) Entitlement(ctx context.Context, userID string) (*Entitlement, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Entitlement{
		IsPremium:        u.IsPremiumActive(time.Now()),
		PremiumExpiresAt: u.PremiumExpiresAt,
	}, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
