package auth

import (
	"context"
	"errors"

	"quizhub-subscription-svc/src/internal/cache"
	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/mailer"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/session"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Register(ctx context.Context, req *RegisterRequest, deviceInfo, ip string) (*Result, error)
	Login(ctx context.Context, req *LoginRequest, deviceInfo, ip string) (*Result, error)
	Logout(ctx context.Context, userID, sessionID string) error
	ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error
}

type authService struct {
	users        user.Repository
	sessions     session.Service
	tokens       *TokenManager
	cacheService cache.Service
	mail         mailer.Publisher
	bcryptCost   int
}

func NewAuthService(
	users user.Repository,
	sessions session.Service,
	tokens *TokenManager,
	cacheService cache.Service,
	mail mailer.Publisher,
	cfg *config.Configuration,
) Service {
	cost := cfg.Security.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &authService{
		users:        users,
		sessions:     sessions,
		tokens:       tokens,
		cacheService: cacheService,
		mail:         mail,
		bcryptCost:   cost,
	}
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest, deviceInfo, ip string) (*Result, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		logrus.WithError(err).Error("Failed to hash password")
		return nil, err
	}

	u := &user.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         user.RoleUser,
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": u.ID.Hex(),
		"email":   u.Email,
	}).Info("User registered")

	result, err := s.openSession(ctx, u, deviceInfo, ip)
	if err != nil {
		return nil, err
	}

	s.mail.Send(&models.EmailMessage{
		To:   u.Email,
		Name: u.Name,
		Kind: models.EmailWelcome,
	})

	return result, nil
}

func (s *authService) Login(ctx context.Context, req *LoginRequest, deviceInfo, ip string) (*Result, error) {
	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		logrus.WithField("email", req.Email).Warn("Login failed, wrong password")
		return nil, models.ErrInvalidCredentials
	}

	// Drop the superseded session from the cache so the old token fails
	// immediately, not only after the cache entry expires.
	if u.ActiveSessionID != "" {
		s.cacheService.InvalidateSession(ctx, u.ID.Hex(), u.ActiveSessionID)
	}

	return s.openSession(ctx, u, deviceInfo, ip)
}

func (s *authService) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.sessions.Deactivate(ctx, sessionID); err != nil {
		return err
	}
	if err := s.users.ClearActiveSession(ctx, userID); err != nil {
		return err
	}
	s.cacheService.InvalidateSession(ctx, userID, sessionID)

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
	}).Info("User logged out")
	return nil
}

// ChangePassword rotates the hash and bumps the token version, logging the
// user out everywhere.
func (s *authService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return models.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		logrus.WithError(err).Error("Failed to hash password")
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	if err := s.sessions.DeactivateAll(ctx, userID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to deactivate sessions after password change")
	}
	if err := s.users.ClearActiveSession(ctx, userID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to clear active session after password change")
	}
	if u.ActiveSessionID != "" {
		s.cacheService.InvalidateSession(ctx, userID, u.ActiveSessionID)
	}

	logrus.WithField("user_id", userID).Info("Password changed, all sessions invalidated")
	return nil
}

// openSession creates the new session, points the user at it and issues a
// token bound to both.
func (s *authService) openSession(ctx context.Context, u *user.User, deviceInfo, ip string) (*Result, error) {
	sess, err := s.sessions.CreateSession(ctx, u.ID.Hex(), deviceInfo, ip)
	if err != nil {
		return nil, err
	}

	if err := s.users.RecordLogin(ctx, u.ID.Hex(), sess.SessionID); err != nil {
		return nil, err
	}
	u.ActiveSessionID = sess.SessionID

	token, err := s.tokens.Issue(u, sess.SessionID)
	if err != nil {
		logrus.WithError(err).Error("Failed to issue token")
		return nil, err
	}

	s.cacheService.CacheActiveSession(ctx, sess)

	return &Result{
		Token: token,
		User:  u.ToProfile(),
	}, nil
}
