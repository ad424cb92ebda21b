package domain

import (
	"slices"
	"time"
)

// Account is a citizen or staff login. Accounts are never hard deleted;
// deactivation flips Active and blocks sign-in until an appeal succeeds.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2id, PHC encoded
	Roles        []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	RoleCitizen = "citizen"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

func (a Account) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// Principal is the externally visible identity of an account. Roles are
// reported here and are not embedded in bearer tokens.
type Principal struct {
	ID       string
	Username string
	Email    string
	Roles    []string
}

func (a Account) Principal() Principal {
	return Principal{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Roles:    slices.Clone(a.Roles),
	}
}
