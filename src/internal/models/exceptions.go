package models

import "errors"

var (
	ErrRedisConnection = errors.New("redis connection error")
	ErrRedisGet        = errors.New("redis get error")
	ErrRedisSet        = errors.New("redis set error")
	ErrRedisDelete     = errors.New("redis delete error")
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInactive = errors.New("session inactive")
	ErrSessionCreating = errors.New("error creating session")
	ErrSessionUpdating = errors.New("error updating session")
)

var (
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrDatabaseInsert     = errors.New("database insert error")
	ErrDatabaseUpdate     = errors.New("database update error")
	ErrDatabaseDelete     = errors.New("database delete error")
	ErrRecordNotFound     = errors.New("record not found")
	ErrDuplicateRecord    = errors.New("duplicate record")
)

var (
	ErrNoToken              = errors.New("authorization token is required")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrUserNotFound         = errors.New("user not found")
	ErrTokenVersionMismatch = errors.New("token version mismatch")
	ErrSessionMismatch      = errors.New("session mismatch")
	ErrSessionInvalidated   = errors.New("session invalidated")
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidParams      = errors.New("invalid parameters")
)

var (
	ErrCodeNotFound      = errors.New("access code not found")
	ErrCodeExpired       = errors.New("access code expired")
	ErrCodeAlreadyUsed   = errors.New("access code already used")
	ErrAccessCodeInvalid = errors.New("access code invalid or expired")
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyCompleted    = errors.New("transaction already completed")
	ErrUnknownPlan         = errors.New("unknown subscription plan")
	ErrUnknownGateway      = errors.New("unknown payment gateway")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)

// Stable codes returned in the `code` field of 401 responses.
const (
	CodeNoToken              = "NO_TOKEN"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeTokenVersionMismatch = "TOKEN_VERSION_MISMATCH"
	CodeSessionMismatch      = "SESSION_MISMATCH"
	CodeSessionInvalidated   = "SESSION_INVALIDATED"
)

// AuthCode maps an authentication error to its stable response code.
func AuthCode(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return CodeNoToken
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrUserNotFound):
		return CodeUserNotFound
	case errors.Is(err, ErrTokenVersionMismatch):
		return CodeTokenVersionMismatch
	case errors.Is(err, ErrSessionMismatch):
		return CodeSessionMismatch
	case errors.Is(err, ErrSessionInvalidated):
		return CodeSessionInvalidated
	default:
		return CodeInvalidToken
	}
}
