package domain

import "time"

// IssuedToken is a signed bearer token handed back after login.
type IssuedToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
