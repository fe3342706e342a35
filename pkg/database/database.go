// Package database owns the PostgreSQL connection pool and the small set of
// administrative operations that act on whole tables.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/platinummonkey/warden/pkg/config"
)

// Connect opens a PostgreSQL pool with the configured limits and verifies
// connectivity before returning.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// allowedTables whitelists the tables the truncate operation may touch.
var allowedTables = map[string]bool{
	"accounts": true,
	"logs":     true,
}

// TruncateTable empties one of the application's tables and resets its id
// sequence. Destructive and test/ops only; the table name is whitelisted, not
// interpolated from caller input.
func TruncateTable(ctx context.Context, db *sql.DB, table string) error {
	if !allowedTables[table] {
		return fmt.Errorf("table %q cannot be truncated", table)
	}

	query := fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY CASCADE`, table)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate table %s: %w", table, err)
	}
	return nil
}
