package session

import "time"

type Session struct {
	SessionID    string     `json:"sessionId" bson:"session_id"`
	UserID       string     `json:"userId" bson:"user_id"`
	DeviceInfo   string     `json:"deviceInfo,omitempty" bson:"device_info,omitempty"`
	IPAddress    string     `json:"ipAddress,omitempty" bson:"ip_address,omitempty"`
	IsActive     bool       `json:"isActive" bson:"is_active"`
	ExpiresAt    time.Time  `json:"expiresAt" bson:"expires_at"`
	CreatedAt    time.Time  `json:"createdAt" bson:"created_at"`
	LogoutAt     *time.Time `json:"logoutAt,omitempty" bson:"logout_at,omitempty"`
	LastActiveAt time.Time  `json:"lastActiveAt" bson:"last_active_at"`
}

// Valid reports whether the session can still authorize requests at the
// given instant. The expiry is absolute from creation, activity does not
// extend it.
func (s *Session) Valid(now time.Time) bool {
	if !s.IsActive || s.LogoutAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}
