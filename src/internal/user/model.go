package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name             string             `json:"name" bson:"name"`
	Email            string             `json:"email" bson:"email"`
	PasswordHash     string             `json:"-" bson:"password_hash"`
	Role             string             `json:"role" bson:"role"`
	TokenVersion     int                `json:"-" bson:"token_version"`
	ActiveSessionID  string             `json:"-" bson:"active_session_id"`
	IsPremium        bool               `json:"isPremium" bson:"is_premium"`
	PremiumExpiresAt *time.Time         `json:"premiumExpiresAt,omitempty" bson:"premium_expires_at,omitempty"`
	PremiumWarnedAt  *time.Time         `json:"-" bson:"premium_warned_at,omitempty"`
	LastLoginAt      *time.Time         `json:"lastLoginAt,omitempty" bson:"last_login_at,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updated_at"`
}

// Profile is the public representation returned by the API.
type Profile struct {
	ID               primitive.ObjectID `json:"id"`
	Name             string             `json:"name"`
	Email            string             `json:"email"`
	Role             string             `json:"role"`
	IsPremium        bool               `json:"isPremium"`
	PremiumExpiresAt *time.Time         `json:"premiumExpiresAt,omitempty"`
	LastLoginAt      *time.Time         `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// Role constants
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type GetAllUsersRequest struct {
	Page    int    `json:"page" form:"page"`
	Limit   int    `json:"limit" form:"limit"`
	Premium string `json:"premium" form:"premium"`
	Search  string `json:"search" form:"search"`
}

type GetAllUsersResponse struct {
	Users      []*Profile `json:"users"`
	TotalCount int64      `json:"totalCount"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// ToProfile converts a User to its public Profile. The premium flag is the
// derived entitlement, never the raw stored boolean.
func (u *User) ToProfile() *Profile {
	return &Profile{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		IsPremium:        u.IsPremiumActive(time.Now()),
		PremiumExpiresAt: u.PremiumExpiresAt,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

// IsPremiumActive reports whether the user is entitled to premium content at
// the given instant. A nil expiry on a premium user means a manual grant with
// no end date.
func (u *User) IsPremiumActive(now time.Time) bool {
	if !u.IsPremium {
		return false
	}
	if u.PremiumExpiresAt == nil {
		return true
	}
	return u.PremiumExpiresAt.After(now)
}

// IsAdmin checks if user is admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
