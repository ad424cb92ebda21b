package domain

import "time"

// ResetCode is the single active password reset code for an email address.
// Issuing a new one replaces the previous record.
type ResetCode struct {
	Email     string
	Code      string // six digits
	ExpiresAt time.Time
}

// ValidAt reports whether the code may still be used at now (inclusive).
func (r ResetCode) ValidAt(now time.Time) bool {
	return !now.After(r.ExpiresAt)
}
