package domain

import "time"

type QRState string

const (
	QRPending   QRState = "pending"
	QRConfirmed QRState = "confirmed"
	// QRExpired is never stored. It is reported for sessions that have
	// passed their deadline or have already been claimed and removed.
	QRExpired QRState = "expired"
)

// QRSession links an unauthenticated device's login request to the approval
// of a second, already signed in device. It moves from pending to confirmed
// at most once and is deleted when claimed or reaped.
type QRSession struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	State     QRState
	BoundUser string // account ID, set on confirmation
}

// ExpiredAt reports whether the session is past its deadline. The deadline
// instant itself is still valid.
func (s QRSession) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
