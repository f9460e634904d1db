package subscription

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessCode is a short-lived, single-use numeric code that activates a
// premium entitlement without going through a payment gateway.
type AccessCode struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Code             string             `json:"code" bson:"code"`
	UserID           string             `json:"userId" bson:"user_id"`
	Email            string             `json:"email" bson:"email"`
	DurationInMonths int                `json:"durationInMonths" bson:"duration_in_months"`
	Used             bool               `json:"used" bson:"used"`
	UsedAt           *time.Time         `json:"usedAt,omitempty" bson:"used_at,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	ExpiresAt        time.Time          `json:"expiresAt" bson:"expires_at"`
}

// Entitlement is the derived premium state returned by the API.
type Entitlement struct {
	IsPremium        bool       `json:"isPremium"`
	PremiumExpiresAt *time.Time `json:"premiumExpiresAt,omitempty"`
}

type ValidateCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type IssueCodeRequest struct {
	UserID           string `json:"userId" binding:"required"`
	DurationInMonths int    `json:"durationInMonths" binding:"required,min=1"`
}
