package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store owns persistence of the logs table. Appends assign ids through the
// storage engine's sequence, so concurrent writers never observe the same id.
type Store struct {
	db *sql.DB
}

// NewStore creates an audit store and ensures its table exists.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &Store{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure logs table: %w", err)
	}
	return s, nil
}

func (s *Store) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS logs (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		time TIMESTAMP WITH TIME ZONE,
		level INTEGER NOT NULL,
		user_id BIGINT,
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_uri TEXT,
		request_method VARCHAR(10),
		status VARCHAR(20) NOT NULL DEFAULT 'UNREADED'
	);

	CREATE INDEX IF NOT EXISTS idx_logs_status ON logs(status);
	CREATE INDEX IF NOT EXISTS idx_logs_user_id ON logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_logs_ip_address ON logs(ip_address);
	CREATE INDEX IF NOT EXISTS idx_logs_time ON logs(time);
	`

	_, err := s.db.Exec(query)
	return err
}

const entryColumns = `id, name, message, time, level, user_id, ip_address, user_agent, request_uri, request_method, status`

// Insert appends an entry and assigns its id. Entries are never updated
// through this path again.
func (s *Store) Insert(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO logs (
			name, message, time, level, user_id,
			ip_address, user_agent, request_uri, request_method, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		entry.Name, entry.Message, entry.Time, entry.Level, entry.UserID,
		entry.IPAddress, entry.UserAgent, entry.RequestURI, entry.RequestMethod,
		entry.Status,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// List retrieves entries matching a single-predicate filter, ordered by id
// descending. The filter must already be validated by the query engine.
func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]*Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM logs`, entryColumns)
	args := []interface{}{}

	switch {
	case filter.Status != nil:
		query += ` WHERE status = $1`
		args = append(args, string(*filter.Status))
	case filter.UserID != nil:
		query += ` WHERE user_id = $1`
		args = append(args, *filter.UserID)
	case filter.IPAddress != nil:
		query += ` WHERE ip_address = $1`
		args = append(args, *filter.IPAddress)
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}
	return entries, nil
}

// identityColumns whitelists the log columns accepted as criteria on the
// identity-enriched path. Anything else is rejected before SQL is built.
var identityColumns = map[string]bool{
	"name":           true,
	"message":        true,
	"level":          true,
	"user_id":        true,
	"ip_address":     true,
	"request_method": true,
	"status":         true,
}

// ListWithIdentity retrieves entries joined against accounts on user_id,
// producing denormalized rows with the account email as display identity.
// Criteria are conjoined by exact equality; multiple criteria are allowed.
func (s *Store) ListWithIdentity(ctx context.Context, criteria map[string]interface{}, limit, offset int) ([]*EntryWithIdentity, error) {
	query := `
		SELECT l.id, l.name, l.message, l.time, l.ip_address, a.email
		FROM logs l
		LEFT JOIN accounts a ON l.user_id = a.id
	`

	args := []interface{}{}
	clause := " WHERE"
	for column, value := range criteria {
		if !identityColumns[column] {
			return nil, fmt.Errorf("unsupported criteria column: %s", column)
		}
		query += fmt.Sprintf("%s l.%s = $%d", clause, column, len(args)+1)
		args = append(args, value)
		clause = " AND"
	}

	query += fmt.Sprintf(" ORDER BY l.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries with identity: %w", err)
	}
	defer rows.Close()

	entries := make([]*EntryWithIdentity, 0)
	for rows.Next() {
		var entry EntryWithIdentity
		var entryTime sql.NullTime
		var ip, username sql.NullString

		if err := rows.Scan(&entry.ID, &entry.Name, &entry.Message, &entryTime, &ip, &username); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if entryTime.Valid {
			t := entryTime.Time
			entry.Time = &t
		}
		entry.IPAddress = ip.String
		entry.Username = username.String
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}
	return entries, nil
}

// GetUsername resolves a user reference to its display identity. A missing or
// deleted account resolves to the empty string, never an error.
func (s *Store) GetUsername(ctx context.Context, userID int64) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `SELECT email FROM accounts WHERE id = $1`, userID).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve username: %w", err)
	}
	return email, nil
}

// SetStatus updates the triage marker of one entry. This is the only
// permitted post-write mutation.
func (s *Store) SetStatus(ctx context.Context, id int64, status TriageStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE logs SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to set log status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("log entry %d does not exist", id)
	}
	return nil
}

// MarkAllRead flips every unread entry to read. Returns the number of entries
// updated.
func (s *Store) MarkAllRead(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE logs SET status = $1 WHERE status = $2`, string(TriageRead), string(TriageUnread))
	if err != nil {
		return 0, fmt.Errorf("failed to mark logs read: %w", err)
	}
	return result.RowsAffected()
}

// ListOlderThan retrieves entries whose time precedes the cutoff, oldest
// first. Used by the retention job to stage entries for archival.
func (s *Store) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Entry, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM logs WHERE time < $1 ORDER BY id ASC LIMIT $2`, entryColumns)

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired log entries: %w", err)
	}
	return entries, nil
}

// DeleteUpTo removes expired entries up to and including the given id.
// The archiver calls this after a batch upload so only uploaded rows go.
func (s *Store) DeleteUpTo(ctx context.Context, cutoff time.Time, lastID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM logs WHERE time < $1 AND id <= $2`, cutoff, lastID)
	if err != nil {
		return fmt.Errorf("failed to delete archived log entries: %w", err)
	}
	return nil
}

// DeleteOlderThan removes entries whose time precedes the cutoff. An
// administrative bulk operation, outside the normal append-only flow.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired log entries: %w", err)
	}
	return result.RowsAffected()
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var entry Entry
	var entryTime sql.NullTime
	var userID sql.NullInt64
	var ip, userAgent, requestURI, requestMethod sql.NullString

	err := rows.Scan(
		&entry.ID, &entry.Name, &entry.Message, &entryTime, &entry.Level,
		&userID, &ip, &userAgent, &requestURI, &requestMethod, &entry.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan log entry: %w", err)
	}

	if entryTime.Valid {
		t := entryTime.Time
		entry.Time = &t
	}
	if userID.Valid {
		id := userID.Int64
		entry.UserID = &id
	}
	entry.IPAddress = ip.String
	entry.UserAgent = userAgent.String
	entry.RequestURI = requestURI.String
	entry.RequestMethod = requestMethod.String
	return &entry, nil
}
