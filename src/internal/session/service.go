package session

import (
	"context"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Service interface {
	CreateSession(ctx context.Context, userID, deviceInfo, ip string) (*Session, error)
	GetByID(ctx context.Context, sessionID string) (*Session, error)
	IsActive(ctx context.Context, userID, sessionID string) (bool, error)
	Touch(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateAll(ctx context.Context, userID string) error
}

type sessionService struct {
	repo Repository
	cfg  *config.SessionConfig
}

func NewSessionService(repo Repository, cfg *config.Configuration) Service {
	return &sessionService{
		repo: repo,
		cfg:  &cfg.Session,
	}
}

// CreateSession opens a new session for the user and deactivates every
// previous one. Only the most recent login wins.
func (s *sessionService) CreateSession(ctx context.Context, userID, deviceInfo, ip string) (*Session, error) {
	if err := s.repo.DeactivateAll(ctx, userID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to deactivate previous sessions")
	}

	now := time.Now()
	session := &Session{
		SessionID:    uuid.NewString(),
		UserID:       userID,
		DeviceInfo:   deviceInfo,
		IPAddress:    ip,
		IsActive:     true,
		ExpiresAt:    now.Add(time.Duration(s.cfg.TTLHours) * time.Hour),
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": session.SessionID,
	}).Info("Session created")

	return session, nil
}

func (s *sessionService) GetByID(ctx context.Context, sessionID string) (*Session, error) {
	return s.repo.GetByID(ctx, sessionID)
}

// IsActive checks ownership, the active flag and the absolute TTL.
func (s *sessionService) IsActive(ctx context.Context, userID, sessionID string) (bool, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if err == models.ErrSessionNotFound {
			return false, nil
		}
		return false, err
	}

	if session.UserID != userID {
		return false, nil
	}

	return session.Valid(time.Now()), nil
}

func (s *sessionService) Touch(ctx context.Context, sessionID string) error {
	return s.repo.UpdateActivity(ctx, sessionID)
}

func (s *sessionService) Deactivate(ctx context.Context, sessionID string) error {
	return s.repo.Deactivate(ctx, sessionID)
}

func (s *sessionService) DeactivateAll(ctx context.Context, userID string) error {
	return s.repo.DeactivateAll(ctx, userID)
}
