package models

import "time"

// Session is one logged-in device. Token is the current refresh token; it
// rotates on every refresh while ID stays fixed.
type Session struct {
	ID        string
	UserID    string
	Token     string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}
