package accounts

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an account. String-valued and extensible;
// the declared constants cover the standard transitions.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBanned   Status = "banned"
)

// RolePrefix is the mandatory prefix of every normalized role token.
const RolePrefix = "ROLE_"

// RoleUser is the baseline role every account holds from registration on.
const RoleUser = "ROLE_USER"

// Account is a registered identity with credentials, roles and status.
type Account struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	CredentialHash string    `json:"-"`
	Roles          []string  `json:"roles"`
	RegisteredAt   time.Time `json:"registered_at"`
	LastLoginAt    time.Time `json:"last_login_at"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	Status         Status    `json:"status"`
}

// NormalizeRole upper-cases a role token and ensures the ROLE_ prefix.
// Normalization happens at the boundary, before any comparison or storage.
func NormalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	if !strings.HasPrefix(role, RolePrefix) {
		role = RolePrefix + role
	}
	return role
}

// HasRole reports whether the account holds the given normalized role.
func (a *Account) HasRole(role string) bool {
	role = NormalizeRole(role)
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// addRole appends a normalized role. The caller guards against duplicates.
func (a *Account) addRole(role string) {
	a.Roles = append(a.Roles, NormalizeRole(role))
}

// removeRole drops a normalized role from the set.
func (a *Account) removeRole(role string) {
	role = NormalizeRole(role)
	kept := a.Roles[:0]
	for _, r := range a.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	a.Roles = kept
}

// FullName renders the account's display name.
func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}
