package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewStore(db)
	require.NoError(t, err)

	return store, mock, func() { db.Close() }
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "credential_hash", "roles",
		"registered_at", "last_login_at", "ip_address", "user_agent", "status",
	})
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	now := time.Now().UTC()
	account := &Account{
		Email:          "ada@example.com",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CredentialHash: "$2a$10$hash",
		Roles:          []string{RoleUser},
		RegisteredAt:   now,
		LastLoginAt:    now,
		IPAddress:      "10.0.0.1",
		UserAgent:      "test-agent",
		Status:         StatusActive,
	}

	mock.ExpectQuery("INSERT INTO accounts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := store.Create(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO accounts").
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "accounts_email_key"`))

	err := store.Create(ctx, &Account{Email: "dup@example.com"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByID(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(accountRows().
			AddRow(int64(1), "ada@example.com", "Ada", "Lovelace", "$2a$10$hash",
				"{ROLE_USER,ROLE_ADMIN}", now, now, "10.0.0.1", "test-agent", "active"))

	account, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "ada@example.com", account.Email)
	assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, account.Roles)
	assert.Equal(t, StatusActive, account.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByID_Absent(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id").
		WithArgs(int64(999)).
		WillReturnRows(accountRows())

	account, err := store.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, account)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByEmail(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WithArgs("ada@example.com").
		WillReturnRows(accountRows().
			AddRow(int64(1), "ada@example.com", "Ada", "Lovelace", "$2a$10$hash",
				"{ROLE_USER}", now, now, "10.0.0.1", "test-agent", "active"))

	account, err := store.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, int64(1), account.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update_NotFound(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE accounts SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(ctx, &Account{ID: 999, Roles: []string{RoleUser}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM accounts WHERE id").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(ctx, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete_NotFound(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM accounts WHERE id").
		WithArgs(int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(ctx, 999)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Touch(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE accounts SET last_login_at").
		WithArgs(int64(1), at, "10.0.0.5", "test-agent").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Touch(ctx, 1, at, "10.0.0.5", "test-agent")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
