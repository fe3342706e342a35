package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/credentials"
	"github.com/platinummonkey/warden/pkg/faults"
	"github.com/platinummonkey/warden/pkg/requestinfo"
)

// Field length bounds, shared with the original data model.
const (
	minFieldLen    = 2
	maxFieldLen    = 255
	minPasswordLen = 6
	maxPasswordLen = 255
)

const timeFormat = "2006-01-02 15:04:05"

// auditName tags audit events originating from this manager.
const auditName = "account-manager"

// AuditRecorder is the slice of the audit recorder the manager needs. The
// best-effort contract matters here: a failed audit write must never fail the
// business operation that triggered it.
type AuditRecorder interface {
	RecordBestEffort(ctx context.Context, name, message string, level int, userID *int64)
}

// LevelInfo mirrors audit.LevelInfo without importing the package.
const levelInfo = 4

// Manager owns all mutations of account authorization state: registration,
// deletion, status transitions, credential resets and the role set. Every
// successful mutation emits one audit event after its persistence commits.
type Manager struct {
	store     *Store
	directory *Directory
	hasher    *credentials.Hasher
	recorder  AuditRecorder
}

// NewManager wires a manager from its collaborators.
func NewManager(store *Store, directory *Directory, hasher *credentials.Hasher, recorder AuditRecorder) *Manager {
	return &Manager{
		store:     store,
		directory: directory,
		hasher:    hasher,
		recorder:  recorder,
	}
}

// Register creates a new account. Inputs are trimmed and validated before any
// persistence happens; the originating request context must carry both an IP
// address and a user agent.
func (m *Manager) Register(ctx context.Context, email, firstName, lastName, password string) (*Account, error) {
	email = strings.TrimSpace(email)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	password = strings.TrimSpace(password)

	if len(email) < minFieldLen || len(email) > maxFieldLen {
		return nil, faults.Newf(faults.KindValidation,
			"invalid email address length (must be between %d and %d characters)", minFieldLen, maxFieldLen)
	}
	if len(firstName) < minFieldLen || len(firstName) > maxFieldLen {
		return nil, faults.Newf(faults.KindValidation,
			"invalid first name length (must be between %d and %d characters)", minFieldLen, maxFieldLen)
	}
	if len(lastName) < minFieldLen || len(lastName) > maxFieldLen {
		return nil, faults.Newf(faults.KindValidation,
			"invalid last name length (must be between %d and %d characters)", minFieldLen, maxFieldLen)
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return nil, faults.Newf(faults.KindValidation,
			"invalid password length (must be between %d and %d characters)", minPasswordLen, maxPasswordLen)
	}

	registered, err := m.directory.EmailRegistered(ctx, email)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, faults.Newf(faults.KindDuplicateAccount, "user: %s already exists", email)
	}

	info, ok := requestinfo.FromContext(ctx)
	if !ok || !info.Complete() {
		return nil, faults.New(faults.KindMissingContext, "ip address or user agent is not available")
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, faults.Wrap(faults.KindPersistence, "failed to hash credential", err)
	}

	now := time.Now().UTC()
	account := &Account{
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		CredentialHash: hash,
		Roles:          []string{RoleUser},
		RegisteredAt:   now,
		LastLoginAt:    now,
		IPAddress:      info.IPAddress,
		UserAgent:      info.UserAgent,
		Status:         StatusActive,
	}

	if err := m.store.Create(ctx, account); err != nil {
		return nil, faults.Wrap(faults.KindPersistence, "failed to register account", err)
	}

	m.recorder.RecordBestEffort(ctx, auditName, "new user registered: "+email, levelInfo, &account.ID)
	return account, nil
}

// Delete removes an account permanently. The audit event is keyed by the
// account's email, resolved before removal.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	account, err := m.mustFind(ctx, id)
	if err != nil {
		return err
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return faults.Wrap(faults.KindPersistence, "failed to delete account", err)
	}

	m.recorder.RecordBestEffort(ctx, auditName, "user deleted: "+account.Email, levelInfo, nil)
	return nil
}

// UpdateStatus transitions an account to a new status. All transitions between
// declared statuses are permitted at this layer; the audit event records both
// old and new values.
func (m *Manager) UpdateStatus(ctx context.Context, id int64, status Status) error {
	account, err := m.mustFind(ctx, id)
	if err != nil {
		return err
	}

	oldStatus := account.Status
	account.Status = status

	if err := m.store.Update(ctx, account); err != nil {
		return faults.Wrap(faults.KindPersistence, "failed to update account status", err)
	}

	m.recorder.RecordBestEffort(ctx, auditName,
		"user: "+account.Email+" updated status to: "+string(status)+" old status was: "+string(oldStatus),
		levelInfo, &account.ID)
	return nil
}

// ResetCredential replaces the account's credential with a freshly generated
// secret and returns the plaintext exactly once. The secret never appears in
// any log or audit message.
func (m *Manager) ResetCredential(ctx context.Context, id int64) (string, error) {
	account, err := m.mustFind(ctx, id)
	if err != nil {
		return "", err
	}

	secret, err := credentials.GenerateSecret(credentials.SecretLength)
	if err != nil {
		return "", faults.Wrap(faults.KindPersistence, "failed to generate secret", err)
	}

	hash, err := m.hasher.Hash(secret)
	if err != nil {
		return "", faults.Wrap(faults.KindPersistence, "failed to hash secret", err)
	}

	account.CredentialHash = hash
	if err := m.store.Update(ctx, account); err != nil {
		return "", faults.Wrap(faults.KindPersistence, "failed to persist credential reset", err)
	}

	m.recorder.RecordBestEffort(ctx, auditName, "user password reset: "+account.Email, levelInfo, &account.ID)
	return secret, nil
}

// HasRole reports whether the account holds the (normalized) role.
func (m *Manager) HasRole(ctx context.Context, id int64, role string) (bool, error) {
	account, err := m.mustFind(ctx, id)
	if err != nil {
		return false, err
	}
	return account.HasRole(role), nil
}

// GrantRole adds a role to the account. Granting an already-granted role fails
// without mutating state.
//
// The check and the update are two storage round trips; two concurrent grants
// of the same role can both pass the check. Accepted: grants are an
// administrative operation and the role set is idempotent under duplicates at
// read time. Callers needing strictness should serialize on the account id.
func (m *Manager) GrantRole(ctx context.Context, id int64, role string) error {
	role = NormalizeRole(role)

	account, err := m.mustFind(ctx, id)
	if err != nil {
		return err
	}

	if account.HasRole(role) {
		return faults.Newf(faults.KindRoleAlreadyGranted, "user already has role: %s", role)
	}

	account.addRole(role)
	if err := m.store.Update(ctx, account); err != nil {
		return faults.Wrap(faults.KindPersistence, "failed to persist role grant", err)
	}

	m.recorder.RecordBestEffort(ctx, auditName,
		"user role added: "+account.Email+" - "+role, levelInfo, &account.ID)
	return nil
}

// RevokeRole removes a role from the account. Revoking a role the account does
// not hold fails without mutating state.
func (m *Manager) RevokeRole(ctx context.Context, id int64, role string) error {
	role = NormalizeRole(role)

	account, err := m.mustFind(ctx, id)
	if err != nil {
		return err
	}

	if !account.HasRole(role) {
		return faults.Newf(faults.KindRoleNotGranted, "user does not have role: %s", role)
	}

	account.removeRole(role)
	if err := m.store.Update(ctx, account); err != nil {
		return faults.Wrap(faults.KindPersistence, "failed to persist role revocation", err)
	}

	m.recorder.RecordBestEffort(ctx, auditName,
		"user role removed: "+account.Email+" - "+role, levelInfo, &account.ID)
	return nil
}

// RecordLogin updates the last-seen metadata after a successful
// authentication. Missing request context falls back to the Unknown
// placeholder rather than failing.
func (m *Manager) RecordLogin(ctx context.Context, identifier string) error {
	account, err := m.directory.FindByEmail(ctx, identifier)
	if err != nil {
		return err
	}
	if account == nil {
		return faults.Newf(faults.KindNotFound, "user not found with identifier: %s", identifier)
	}

	info, _ := requestinfo.FromContext(ctx)
	info = info.OrUnknown()

	if err := m.store.Touch(ctx, account.ID, time.Now().UTC(), info.IPAddress, info.UserAgent); err != nil {
		return faults.Wrap(faults.KindPersistence, "failed to record login", err)
	}
	return nil
}

// Info assembles the account-info read boundary. The response is
// all-or-nothing: any unresolved field fails the whole lookup.
func (m *Manager) Info(ctx context.Context, id int64) (map[string]interface{}, error) {
	account, err := m.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}

	if account.Email == "" || account.FirstName == "" || account.LastName == "" ||
		len(account.Roles) == 0 || account.RegisteredAt.IsZero() || account.LastLoginAt.IsZero() ||
		account.IPAddress == "" || account.UserAgent == "" || account.Status == "" {
		return nil, faults.Newf(faults.KindNotFound, "user id: %d info not found", id)
	}

	return map[string]interface{}{
		"email":         account.Email,
		"firstName":     account.FirstName,
		"lastName":      account.LastName,
		"roles":         account.Roles,
		"registerTime":  account.RegisteredAt.Format(timeFormat),
		"lastLoginTime": account.LastLoginAt.Format(timeFormat),
		"ipAddress":     account.IPAddress,
		"userAgent":     account.UserAgent,
		"status":        string(account.Status),
	}, nil
}

func (m *Manager) mustFind(ctx context.Context, id int64) (*Account, error) {
	account, err := m.directory.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, faults.Newf(faults.KindNotFound, "user not found with id: %d", id)
	}
	return account, nil
}
