// Package domain contains core types for admin authentication.
package domain

import "time"

// Session is a signed-in admin. Only the hash of the cookie token is stored.
type Session struct {
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionView is returned to clients without exposing token values.
type SessionView struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}
