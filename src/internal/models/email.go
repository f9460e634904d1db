package models

import "time"

// EmailMessage is published to the email queue; a separate worker renders
// and sends the actual mail.
type EmailMessage struct {
	To        string            `json:"to"`
	Name      string            `json:"name,omitempty"`
	Kind      string            `json:"kind"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Email kind constants
const (
	EmailWelcome           = "welcome"
	EmailAccessCode        = "access_code"
	EmailPremiumActivated  = "premium_activated"
	EmailExpiryWarning     = "expiry_warning"
	EmailSubscriptionEnded = "subscription_ended"
)
