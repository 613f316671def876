package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultBatchSize keeps multi-row upserts under the remote payload limit
const DefaultBatchSize = 500

// Repository handles all database operations
type Repository struct {
	db        *sql.DB
	driver    string
	batchSize int
}

// NewRepository opens a SQLite file or a PostgreSQL DSN and migrates the schema
func NewRepository(driver, dsn string, batchSize int) (*Repository, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	switch driver {
	case DriverSQLite:
		// Ensure directory exists
		if dsn != ":memory:" {
			dir := filepath.Dir(dsn)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite has a single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db, driver: driver, batchSize: batchSize}

	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}

	// Run migrations
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS faction_members (
			member_id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			level INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS war_reports (
			war_id BIGINT PRIMARY KEY,
			faction_id BIGINT NOT NULL,
			opponent_id BIGINT NOT NULL,
			opponent_name TEXT NOT NULL DEFAULT '',
			start_at TIMESTAMP NOT NULL,
			end_at TIMESTAMP NOT NULL,
			total_hits INTEGER NOT NULL DEFAULT 0,
			total_assists INTEGER NOT NULL DEFAULT 0,
			total_respect DOUBLE PRECISION NOT NULL DEFAULT 0,
			generated_by TEXT NOT NULL DEFAULT '',
			generated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS member_contributions (
			war_id BIGINT NOT NULL,
			member_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			war_hits INTEGER NOT NULL DEFAULT 0,
			under_threshold_hits INTEGER NOT NULL DEFAULT 0,
			off_target_hits INTEGER NOT NULL DEFAULT 0,
			assists INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			respect DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (war_id, member_id)
		)`,
		`CREATE TABLE IF NOT EXISTS funds_snapshots (
			id TEXT PRIMARY KEY,
			money BIGINT NOT NULL,
			points BIGINT NOT NULL,
			member_money BIGINT NOT NULL,
			members INTEGER NOT NULL,
			taken_by TEXT NOT NULL DEFAULT '',
			taken_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS funds_transactions (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			amount BIGINT NOT NULL,
			member_id BIGINT NOT NULL DEFAULT 0,
			war_id BIGINT NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payout_summaries (
			war_id BIGINT PRIMARY KEY,
			pool BIGINT NOT NULL,
			fraction DOUBLE PRECISION NOT NULL,
			payout BIGINT NOT NULL,
			total_points DOUBLE PRECISION NOT NULL,
			rate DOUBLE PRECISION NOT NULL,
			war_hit_points DOUBLE PRECISION NOT NULL,
			under_threshold_points DOUBLE PRECISION NOT NULL,
			off_target_points DOUBLE PRECISION NOT NULL,
			assist_points DOUBLE PRECISION NOT NULL,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payout_line_items (
			war_id BIGINT NOT NULL,
			member_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			war_hits INTEGER NOT NULL DEFAULT 0,
			under_threshold_hits INTEGER NOT NULL DEFAULT 0,
			off_target_hits INTEGER NOT NULL DEFAULT 0,
			assists INTEGER NOT NULL DEFAULT 0,
			points DOUBLE PRECISION NOT NULL,
			payment BIGINT NOT NULL,
			paid BOOLEAN NOT NULL DEFAULT FALSE,
			paid_by TEXT NOT NULL DEFAULT '',
			paid_at TIMESTAMP NULL,
			PRIMARY KEY (war_id, member_id)
		)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value DOUBLE PRECISION NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_funds_transactions_created ON funds_transactions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_funds_snapshots_taken ON funds_snapshots(taken_at)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 16)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(query), args...)
}

// upsert describes a multi-row insert-or-update
type upsert struct {
	table    string
	columns  []string
	conflict []string
}

func (u upsert) statement(rows int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", u.table, strings.Join(u.columns, ", "))

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(u.columns)), ", ") + ")"
	for i := 0; i < rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}

	isKey := make(map[string]bool, len(u.conflict))
	for _, c := range u.conflict {
		isKey[c] = true
	}
	var sets []string
	for _, c := range u.columns {
		if !isKey[c] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	fmt.Fprintf(&sb, " ON CONFLICT (%s)", strings.Join(u.conflict, ", "))
	if len(sets) == 0 {
		sb.WriteString(" DO NOTHING")
	} else {
		sb.WriteString(" DO UPDATE SET " + strings.Join(sets, ", "))
	}
	return sb.String()
}

// upsertBatched writes rows in fixed-size chunks, one statement per chunk.
// Chunks are not wrapped in a shared transaction; a failure leaves earlier
// chunks written, which a rerun overwrites by key.
func (r *Repository) upsertBatched(ctx context.Context, u upsert, rows [][]any) error {
	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(u.columns))
		for _, row := range chunk {
			args = append(args, row...)
		}

		if _, err := r.exec(ctx, u.statement(len(chunk)), args...); err != nil {
			return fmt.Errorf("upsert %s rows %d-%d: %w", u.table, start, end-1, err)
		}
	}
	return nil
}
