package domain

import "time"

// Session is a server-side login session referenced by issued tokens.
type Session struct {
	ID        string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
