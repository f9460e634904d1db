package auth

import (
	"context"
	"testing"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/session"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users map[string]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*user.User{}}
}

func (f *fakeUserRepo) EnsureIndexes(_ context.Context) error { return nil }

func (f *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return models.ErrEmailTaken
		}
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID.Hex()] = u
	return nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (f *fakeUserRepo) FindByID(_ context.Context, userID string) (*user.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) RecordLogin(_ context.Context, userID, sessionID string) error {
	u, ok := f.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	now := time.Now()
	u.ActiveSessionID = sessionID
	u.LastLoginAt = &now
	return nil
}

func (f *fakeUserRepo) ClearActiveSession(_ context.Context, userID string) error {
	if u, ok := f.users[userID]; ok {
		u.ActiveSessionID = ""
	}
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.TokenVersion++
	return nil
}

func (f *fakeUserRepo) SetPremium(_ context.Context, userID string, expiresAt time.Time) error {
	if u, ok := f.users[userID]; ok {
		u.IsPremium = true
		exp := expiresAt
		u.PremiumExpiresAt = &exp
	}
	return nil
}

func (f *fakeUserRepo) RevokePremium(_ context.Context, userID string) error {
	if u, ok := f.users[userID]; ok {
		u.IsPremium = false
		u.PremiumExpiresAt = nil
	}
	return nil
}

func (f *fakeUserRepo) MarkWarned(_ context.Context, userID string, at time.Time) error {
	if u, ok := f.users[userID]; ok {
		warned := at
		u.PremiumWarnedAt = &warned
	}
	return nil
}

func (f *fakeUserRepo) FindExpiredPremium(_ context.Context, _ time.Time) ([]*user.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) FindExpiringBetween(_ context.Context, _, _ time.Time) ([]*user.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) GetAllUsers(_ context.Context, _ *user.GetAllUsersRequest) ([]*user.User, int64, error) {
	return nil, 0, nil
}

func (f *fakeUserRepo) GetUserStats(_ context.Context, _ time.Duration) (*models.Stats, error) {
	return nil, nil
}

type fakeSessionService struct {
	sessions map[string]*session.Session
}

func newFakeSessionService() *fakeSessionService {
	return &fakeSessionService{sessions: map[string]*session.Session{}}
}

func (f *fakeSessionService) CreateSession(_ context.Context, userID, deviceInfo, ip string) (*session.Session, error) {
	for _, s := range f.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	now := time.Now()
	s := &session.Session{
		SessionID:    uuid.NewString(),
		UserID:       userID,
		DeviceInfo:   deviceInfo,
		IPAddress:    ip,
		IsActive:     true,
		ExpiresAt:    now.Add(24 * time.Hour),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	f.sessions[s.SessionID] = s
	return s, nil
}

func (f *fakeSessionService) GetByID(_ context.Context, sessionID string) (*session.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionService) IsActive(_ context.Context, userID, sessionID string) (bool, error) {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return false, nil
	}
	return s.Valid(time.Now()), nil
}

func (f *fakeSessionService) Touch(_ context.Context, _ string) error { return nil }

func (f *fakeSessionService) Deactivate(_ context.Context, sessionID string) error {
	if s, ok := f.sessions[sessionID]; ok {
		now := time.Now()
		s.IsActive = false
		s.LogoutAt = &now
	}
	return nil
}

func (f *fakeSessionService) DeactivateAll(_ context.Context, userID string) error {
	for _, s := range f.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

type fakeCacheService struct {
	invalidated []string
}

func (f *fakeCacheService) GetActiveSession(_ context.Context, _ string) (*session.Session, error) {
	return nil, nil
}

func (f *fakeCacheService) UpdateSessionActivity(_ context.Context, _ string) error { return nil }

func (f *fakeCacheService) CacheActiveSession(_ context.Context, _ *session.Session) error {
	return nil
}

func (f *fakeCacheService) InvalidateSession(_ context.Context, userID, sessionID string) error {
	f.invalidated = append(f.invalidated, userID+"/"+sessionID)
	return nil
}

func (f *fakeCacheService) SaveUserStats(_ context.Context, _ *models.Stats) error { return nil }

func (f *fakeCacheService) GetUserStats(_ context.Context) (*models.Stats, error) { return nil, nil }

type recordingMailer struct {
	sent []*models.EmailMessage
}

func (m *recordingMailer) Send(msg *models.EmailMessage) {
	m.sent = append(m.sent, msg)
}

type authServiceFixture struct {
	svc      Service
	users    *fakeUserRepo
	sessions *fakeSessionService
	cache    *fakeCacheService
	mail     *recordingMailer
}

func newAuthServiceFixture() *authServiceFixture {
	cfg := &config.Configuration{
		Security: config.SecuritySettings{
			JwtKey:          "test-jwt-key",
			TokenExpiryDays: 7,
			BcryptCost:      bcrypt.MinCost,
		},
	}
	f := &authServiceFixture{
		users:    newFakeUserRepo(),
		sessions: newFakeSessionService(),
		cache:    &fakeCacheService{},
		mail:     &recordingMailer{},
	}
	f.svc = NewAuthService(f.users, f.sessions, NewTokenManager(cfg), f.cache, f.mail, cfg)
	return f
}

func (f *authServiceFixture) register(t *testing.T) *Result {
	t.Helper()
	result, err := f.svc.Register(context.Background(), &RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
	}, "laptop", "10.0.0.1")
	require.NoError(t, err)
	return result
}

func TestRegister(t *testing.T) {
	f := newAuthServiceFixture()

	result := f.register(t)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.False(t, result.User.IsPremium)

	u := f.users.users[result.User.ID.Hex()]
	require.NotNil(t, u)
	assert.NotEmpty(t, u.ActiveSessionID)
	// Stored hash is not the raw password.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")))

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, models.EmailWelcome, f.mail.sent[0].Kind)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthServiceFixture()
	f.register(t)

	_, err := f.svc.Register(context.Background(), &RegisterRequest{
		Name:     "Other",
		Email:    "alice@example.com",
		Password: "different",
	}, "", "")
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		f := newAuthServiceFixture()
		f.register(t)

		result, err := f.svc.Login(context.Background(), &LoginRequest{
			Email:    "alice@example.com",
			Password: "secret123",
		}, "phone", "10.0.0.2")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		f := newAuthServiceFixture()
		f.register(t)

		_, errWrongPw := f.svc.Login(context.Background(), &LoginRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		}, "", "")
		_, errNoUser := f.svc.Login(context.Background(), &LoginRequest{
			Email:    "nobody@example.com",
			Password: "whatever",
		}, "", "")

		assert.ErrorIs(t, errWrongPw, models.ErrInvalidCredentials)
		assert.ErrorIs(t, errNoUser, models.ErrInvalidCredentials)
	})

	t.Run("second login supersedes the first session", func(t *testing.T) {
		f := newAuthServiceFixture()
		first := f.register(t)
		firstSession := f.users.users[first.User.ID.Hex()].ActiveSessionID

		_, err := f.svc.Login(context.Background(), &LoginRequest{
			Email:    "alice@example.com",
			Password: "secret123",
		}, "phone", "10.0.0.2")
		require.NoError(t, err)

		u := f.users.users[first.User.ID.Hex()]
		assert.NotEqual(t, firstSession, u.ActiveSessionID)
		assert.False(t, f.sessions.sessions[firstSession].IsActive)
		// The superseded session is dropped from the cache immediately.
		assert.Contains(t, f.cache.invalidated, u.ID.Hex()+"/"+firstSession)
	})
}

func TestLogout(t *testing.T) {
	f := newAuthServiceFixture()
	result := f.register(t)

	userID := result.User.ID.Hex()
	sessionID := f.users.users[userID].ActiveSessionID

	require.NoError(t, f.svc.Logout(context.Background(), userID, sessionID))

	assert.Empty(t, f.users.users[userID].ActiveSessionID)
	assert.False(t, f.sessions.sessions[sessionID].IsActive)
	assert.Contains(t, f.cache.invalidated, userID+"/"+sessionID)
}

func TestChangePassword(t *testing.T) {
	t.Run("rotates hash and invalidates everything", func(t *testing.T) {
		f := newAuthServiceFixture()
		result := f.register(t)
		userID := result.User.ID.Hex()
		oldVersion := f.users.users[userID].TokenVersion
		oldSession := f.users.users[userID].ActiveSessionID

		err := f.svc.ChangePassword(context.Background(), userID, &ChangePasswordRequest{
			CurrentPassword: "secret123",
			NewPassword:     "evenmoresecret",
		})
		require.NoError(t, err)

		u := f.users.users[userID]
		assert.Greater(t, u.TokenVersion, oldVersion)
		assert.Empty(t, u.ActiveSessionID)
		assert.False(t, f.sessions.sessions[oldSession].IsActive)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("evenmoresecret")))
	})

	t.Run("wrong current password is rejected", func(t *testing.T) {
		f := newAuthServiceFixture()
		result := f.register(t)

		err := f.svc.ChangePassword(context.Background(), result.User.ID.Hex(), &ChangePasswordRequest{
			CurrentPassword: "wrong",
			NewPassword:     "evenmoresecret",
		})
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})
}
