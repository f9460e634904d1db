package auth

import (
	"errors"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT token claims
type Claims struct {
	UserID       string `json:"userId"`
	SessionID    string `json:"sessionId"`
	TokenVersion int    `json:"tokenVersion"`
	Email        string `json:"email"`
	TokenType    string `json:"tokenType"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates bearer tokens.
type TokenManager struct {
	secret     []byte
	expiryDays int
}

func NewTokenManager(cfg *config.Configuration) *TokenManager {
	expiryDays := cfg.Security.TokenExpiryDays
	if expiryDays <= 0 {
		expiryDays = 7
	}
	return &TokenManager{
		secret:     []byte(cfg.Security.JwtKey),
		expiryDays: expiryDays,
	}
}

// Issue mints a token bound to the user's current token version and session.
func (m *TokenManager) Issue(u *user.User, sessionID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:       u.ID.Hex(),
		SessionID:    sessionID,
		TokenVersion: u.TokenVersion,
		Email:        u.Email,
		TokenType:    "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(m.expiryDays) * 24 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Decode structurally parses the token without verifying the signature. The
// validation pipeline needs the embedded user id before the cryptographic
// check runs.
func (m *TokenManager) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, models.ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}

// Verify checks the signature, expiry and token type.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrInvalidToken
	}

	if !token.Valid {
		return nil, models.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, models.ErrInvalidToken
	}

	if claims.TokenType != "access" {
		return nil, models.ErrInvalidToken
	}

	return claims, nil
}
