package subscription

import (
	"context"
	"testing"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeUserStore struct {
	users           map[string]*user.User
	setPremiumCalls int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*user.User{}}
}

func (f *fakeUserStore) add(u *user.User) string {
	id := u.ID.Hex()
	f.users[id] = u
	return id
}

func (f *fakeUserStore) FindByID(_ context.Context, userID string) (*user.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) SetPremium(_ context.Context, userID string, expiresAt time.Time) error {
	u, ok := f.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	f.setPremiumCalls++
	u.IsPremium = true
	exp := expiresAt
	u.PremiumExpiresAt = &exp
	u.PremiumWarnedAt = nil
	return nil
}

type fakeCodeRepo struct {
	codes map[string]*AccessCode
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: map[string]*AccessCode{}}
}

func (f *fakeCodeRepo) Insert(_ context.Context, code *AccessCode) error {
	f.codes[code.Code] = code
	return nil
}

func (f *fakeCodeRepo) FindByCode(_ context.Context, code string) (*AccessCode, error) {
	ac, ok := f.codes[code]
	if !ok {
		return nil, models.ErrCodeNotFound
	}
	copied := *ac
	return &copied, nil
}

func (f *fakeCodeRepo) FindLatestByUser(_ context.Context, userID string) (*AccessCode, error) {
	var latest *AccessCode
	for _, ac := range f.codes {
		if ac.UserID != userID {
			continue
		}
		if latest == nil || ac.CreatedAt.After(latest.CreatedAt) {
			latest = ac
		}
	}
	if latest == nil {
		return nil, models.ErrCodeNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeCodeRepo) MarkUsed(_ context.Context, code string) error {
	ac, ok := f.codes[code]
	if !ok || ac.Used {
		return models.ErrCodeAlreadyUsed
	}
	now := time.Now()
	ac.Used = true
	ac.UsedAt = &now
	return nil
}

type recordingMailer struct {
	sent []*models.EmailMessage
}

func (m *recordingMailer) Send(msg *models.EmailMessage) {
	m.sent = append(m.sent, msg)
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Subscription: config.SubscriptionConfig{
			AccessCodeTTLMinutes: 30,
			WarningDays:          3,
		},
	}
}

func newTestUser() *user.User {
	return &user.User{
		ID:    primitive.NewObjectID(),
		Name:  "Alice",
		Email: "alice@example.com",
		Role:  user.RoleUser,
	}
}

func TestActivatePremiumFreshUser(t *testing.T) {
	users := newFakeUserStore()
	mail := &recordingMailer{}
	svc := NewService(users, newFakeCodeRepo(), mail, testConfig())

	userID := users.add(newTestUser())

	before := time.Now()
	u, err := svc.ActivatePremium(context.Background(), userID, 1, "test")
	require.NoError(t, err)

	require.NotNil(t, u.PremiumExpiresAt)
	assert.True(t, u.IsPremiumActive(time.Now()))

	expected := before.AddDate(0, 1, 0)
	assert.WithinDuration(t, expected, *u.PremiumExpiresAt, 2*time.Second)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, models.EmailPremiumActivated, mail.sent[0].Kind)
	assert.Equal(t, "alice@example.com", mail.sent[0].To)
}

func TestActivatePremiumExtendsOnRenewal(t *testing.T) {
	users := newFakeUserStore()
	svc := NewService(users, newFakeCodeRepo(), &recordingMailer{}, testConfig())

	u := newTestUser()
	existing := time.Now().Add(10 * 24 * time.Hour)
	u.IsPremium = true
	u.PremiumExpiresAt = &existing
	userID := users.add(u)

	activated, err := svc.ActivatePremium(context.Background(), userID, 1, "test")
	require.NoError(t, err)

	// Renewal extends from the current expiry, it does not reset to now.
	expected := existing.AddDate(0, 1, 0)
	assert.WithinDuration(t, expected, *activated.PremiumExpiresAt, 2*time.Second)
}

func TestActivatePremiumAfterLapseStartsFromNow(t *testing.T) {
	users := newFakeUserStore()
	svc := NewService(users, newFakeCodeRepo(), &recordingMailer{}, testConfig())

	u := newTestUser()
	lapsed := time.Now().Add(-24 * time.Hour)
	u.IsPremium = true
	u.PremiumExpiresAt = &lapsed
	userID := users.add(u)

	before := time.Now()
	activated, err := svc.ActivatePremium(context.Background(), userID, 2, "test")
	require.NoError(t, err)

	expected := before.AddDate(0, 2, 0)
	assert.WithinDuration(t, expected, *activated.PremiumExpiresAt, 2*time.Second)
}

func TestRedeemAccessCode(t *testing.T) {
	users := newFakeUserStore()
	codes := newFakeCodeRepo()
	mail := &recordingMailer{}
	svc := NewService(users, codes, mail, testConfig())

	userID := users.add(newTestUser())

	now := time.Now()
	codes.Insert(context.Background(), &AccessCode{
		Code:             "123456",
		UserID:           userID,
		Email:            "alice@example.com",
		DurationInMonths: 1,
		CreatedAt:        now,
		ExpiresAt:        now.Add(30 * time.Minute),
	})

	t.Run("first redemption succeeds", func(t *testing.T) {
		u, err := svc.RedeemAccessCode(context.Background(), userID, "123456")
		require.NoError(t, err)
		assert.True(t, u.IsPremiumActive(time.Now()))
		assert.Equal(t, 1, users.setPremiumCalls)
	})

	t.Run("second redemption fails with the generic error", func(t *testing.T) {
		_, err := svc.RedeemAccessCode(context.Background(), userID, "123456")
		assert.ErrorIs(t, err, models.ErrAccessCodeInvalid)
		// Expiry changed exactly once.
		assert.Equal(t, 1, users.setPremiumCalls)
	})
}

func TestRedeemAccessCodeExpired(t *testing.T) {
	users := newFakeUserStore()
	codes := newFakeCodeRepo()
	svc := NewService(users, codes, &recordingMailer{}, testConfig())

	userID := users.add(newTestUser())

	now := time.Now()
	codes.Insert(context.Background(), &AccessCode{
		Code:             "123456",
		UserID:           userID,
		DurationInMonths: 1,
		CreatedAt:        now.Add(-time.Hour),
		ExpiresAt:        now.Add(-time.Second),
	})

	_, err := svc.RedeemAccessCode(context.Background(), userID, "123456")
	assert.ErrorIs(t, err, models.ErrAccessCodeInvalid)

	u, _ := users.FindByID(context.Background(), userID)
	assert.False(t, u.IsPremiumActive(time.Now()))
}

func TestRedeemAccessCodeWrongOwner(t *testing.T) {
	users := newFakeUserStore()
	codes := newFakeCodeRepo()
	svc := NewService(users, codes, &recordingMailer{}, testConfig())

	ownerID := users.add(newTestUser())
	other := newTestUser()
	other.Email = "bob@example.com"
	otherID := users.add(other)

	now := time.Now()
	codes.Insert(context.Background(), &AccessCode{
		Code:             "654321",
		UserID:           ownerID,
		DurationInMonths: 1,
		CreatedAt:        now,
		ExpiresAt:        now.Add(30 * time.Minute),
	})

	_, err := svc.RedeemAccessCode(context.Background(), otherID, "654321")
	assert.ErrorIs(t, err, models.ErrAccessCodeInvalid)
	assert.Equal(t, 0, users.setPremiumCalls)
}

func TestUnknownCodeCollapsesToGenericError(t *testing.T) {
	users := newFakeUserStore()
	svc := NewService(users, newFakeCodeRepo(), &recordingMailer{}, testConfig())

	userID := users.add(newTestUser())

	_, err := svc.RedeemAccessCode(context.Background(), userID, "000000")
	assert.ErrorIs(t, err, models.ErrAccessCodeInvalid)
}

func TestIssueAccessCode(t *testing.T) {
	users := newFakeUserStore()
	codes := newFakeCodeRepo()
	mail := &recordingMailer{}
	svc := NewService(users, codes, mail, testConfig())

	userID := users.add(newTestUser())

	ac, err := svc.IssueAccessCode(context.Background(), userID, 1)
	require.NoError(t, err)

	assert.Len(t, ac.Code, 6)
	assert.False(t, ac.Used)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), ac.ExpiresAt, 2*time.Second)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, models.EmailAccessCode, mail.sent[0].Kind)
	assert.Equal(t, ac.Code, mail.sent[0].Data["code"])
}

func TestResendAccessCode(t *testing.T) {
	t.Run("unused code is re-mailed", func(t *testing.T) {
		users := newFakeUserStore()
		codes := newFakeCodeRepo()
		mail := &recordingMailer{}
		svc := NewService(users, codes, mail, testConfig())

		userID := users.add(newTestUser())

		now := time.Now()
		codes.Insert(context.Background(), &AccessCode{
			Code:             "111111",
			UserID:           userID,
			DurationInMonths: 1,
			CreatedAt:        now,
			ExpiresAt:        now.Add(20 * time.Minute),
		})

		require.NoError(t, svc.ResendAccessCode(context.Background(), userID))
		require.Len(t, mail.sent, 1)
		assert.Equal(t, "111111", mail.sent[0].Data["code"])
	})

	t.Run("expired code is replaced by a fresh one", func(t *testing.T) {
		users := newFakeUserStore()
		codes := newFakeCodeRepo()
		mail := &recordingMailer{}
		svc := NewService(users, codes, mail, testConfig())

		userID := users.add(newTestUser())

		now := time.Now()
		codes.Insert(context.Background(), &AccessCode{
			Code:             "222222",
			UserID:           userID,
			DurationInMonths: 3,
			CreatedAt:        now.Add(-time.Hour),
			ExpiresAt:        now.Add(-time.Minute),
		})

		require.NoError(t, svc.ResendAccessCode(context.Background(), userID))
		require.Len(t, mail.sent, 1)
		assert.NotEqual(t, "222222", mail.sent[0].Data["code"])
	})

	t.Run("used code can not be resent", func(t *testing.T) {
		users := newFakeUserStore()
		codes := newFakeCodeRepo()
		svc := NewService(users, codes, &recordingMailer{}, testConfig())

		userID := users.add(newTestUser())

		now := time.Now()
		codes.Insert(context.Background(), &AccessCode{
			Code:             "333333",
			UserID:           userID,
			DurationInMonths: 1,
			Used:             true,
			CreatedAt:        now,
			ExpiresAt:        now.Add(20 * time.Minute),
		})

		err := svc.ResendAccessCode(context.Background(), userID)
		assert.ErrorIs(t, err, models.ErrAccessCodeInvalid)
	})
}

func TestEntitlementIsDerived(t *testing.T) {
	users := newFakeUserStore()
	svc := NewService(users, newFakeCodeRepo(), &recordingMailer{}, testConfig())

	// Raw flag still true, expiry already passed: the derived check must win
	// even before the sweeper runs.
	u := newTestUser()
	past := time.Now().Add(-time.Minute)
	u.IsPremium = true
	u.PremiumExpiresAt = &past
	userID := users.add(u)

	ent, err := svc.Entitlement(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ent.IsPremium)
}
