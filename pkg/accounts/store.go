package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Store handles account persistence in PostgreSQL. It is the exclusive owner
// of the accounts table; no other component writes account records.
type Store struct {
	db *sql.DB
}

// NewStore creates an account store and ensures its table exists.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &Store{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure accounts table: %w", err)
	}
	return s, nil
}

func (s *Store) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		credential_hash TEXT NOT NULL,
		roles TEXT[] NOT NULL DEFAULT '{}',
		registered_at TIMESTAMP WITH TIME ZONE NOT NULL,
		last_login_at TIMESTAMP WITH TIME ZONE NOT NULL,
		ip_address VARCHAR(45) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'active'
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
	CREATE INDEX IF NOT EXISTS idx_accounts_status ON accounts(status);
	`

	_, err := s.db.Exec(query)
	return err
}

const accountColumns = `id, email, first_name, last_name, credential_hash, roles, registered_at, last_login_at, ip_address, user_agent, status`

// Create persists a new account and assigns its id.
func (s *Store) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (
			email, first_name, last_name, credential_hash, roles,
			registered_at, last_login_at, ip_address, user_agent, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		account.Email, account.FirstName, account.LastName,
		account.CredentialHash, pq.Array(account.Roles),
		account.RegisteredAt, account.LastLoginAt,
		account.IPAddress, account.UserAgent, account.Status,
	).Scan(&account.ID)

	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by id. Absence is not an error: the result is
// (nil, nil) when no account matches.
func (s *Store) GetByID(ctx context.Context, id int64) (*Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an account by email (case-sensitive equality).
// Returns (nil, nil) when no account matches.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE email = $1`, accountColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) scanOne(row *sql.Row) (*Account, error) {
	var account Account
	var roles pq.StringArray

	err := row.Scan(
		&account.ID, &account.Email, &account.FirstName, &account.LastName,
		&account.CredentialHash, &roles,
		&account.RegisteredAt, &account.LastLoginAt,
		&account.IPAddress, &account.UserAgent, &account.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.Roles = []string(roles)
	return &account, nil
}

// Update persists the mutable fields of an existing account.
func (s *Store) Update(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts SET
			email = $2, first_name = $3, last_name = $4, credential_hash = $5,
			roles = $6, last_login_at = $7, ip_address = $8, user_agent = $9,
			status = $10
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		account.ID, account.Email, account.FirstName, account.LastName,
		account.CredentialHash, pq.Array(account.Roles),
		account.LastLoginAt, account.IPAddress, account.UserAgent, account.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %d does not exist", account.ID)
	}
	return nil
}

// Delete removes an account permanently. Hard delete, not soft.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %d does not exist", id)
	}
	return nil
}

// Touch updates the last-seen login fields only.
func (s *Store) Touch(ctx context.Context, id int64, at time.Time, ip, userAgent string) error {
	query := `
		UPDATE accounts SET last_login_at = $2, ip_address = $3, user_agent = $4
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, id, at, ip, userAgent); err != nil {
		return fmt.Errorf("failed to update login info: %w", err)
	}
	return nil
}
