package domain

import "time"

// TokenPair is an access token and refresh token minted against the same
// instant. The two are independent: revoking one leaves the other valid.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RevocationEntry marks a token unusable before its natural expiry. ID is the
// fingerprint of the encoded token, never the token itself.
type RevocationEntry struct {
	ID        string
	ExpiresAt time.Time
}

// ReapableAt reports whether the entry may be dropped. From ExpiresAt on the
// token fails its own expiry check, so keeping the entry buys nothing.
func (e RevocationEntry) ReapableAt(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
