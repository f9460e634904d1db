package payment

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction records a payment intent against a gateway. Status moves one
// way only: pending -> completed | failed | cancelled.
type Transaction struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TransactionID    string             `json:"transactionId" bson:"transaction_id"`
	GatewayRef       string             `json:"gatewayRef,omitempty" bson:"gateway_ref,omitempty"`
	UserID           string             `json:"userId" bson:"user_id"`
	Amount           int64              `json:"amount" bson:"amount"`
	DurationInMonths int                `json:"durationInMonths" bson:"duration_in_months"`
	PlanID           string             `json:"planId" bson:"plan_id"`
	Status           string             `json:"status" bson:"status"`
	PaymentGateway   string             `json:"paymentGateway" bson:"payment_gateway"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updated_at"`
	CompletedAt      *time.Time         `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
}

// Status constants
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Gateway constants
const (
	GatewayPayDunya = "paydunya"
	GatewayKkiaPay  = "kkiapay"
)

type InitiateRequest struct {
	PlanID  string `json:"planId" binding:"required"`
	Gateway string `json:"gateway" binding:"required"`
}

type InitiateResponse struct {
	TransactionID string `json:"transactionId"`
	RedirectURL   string `json:"redirectUrl"`
}

// WebhookPayload is the body of a gateway callback after signature
// verification.
type WebhookPayload struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	GatewayRef    string `json:"gatewayRef,omitempty"`
}
