package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect holds what differs between the SQL engines behind URLRepository.
type Dialect struct {
	name              string
	schema            []string
	positional        bool
	textTime          bool
	isUniqueViolation func(error) bool
}

// Postgres is the pgx dialect.
var Postgres = Dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS urls (
			id BIGSERIAL PRIMARY KEY,
			original_url TEXT NOT NULL,
			short_code TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NULL,
			clicks BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_urls_short_code ON urls(short_code)`,
		`CREATE INDEX IF NOT EXISTS idx_urls_created_at ON urls(created_at)`,
	},
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
	},
}

// SQLite is the modernc.org/sqlite dialect. Timestamps are stored as
// fixed-width UTC text so that they sort correctly.
var SQLite = Dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS urls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			original_url TEXT NOT NULL,
			short_code TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NULL,
			clicks INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_urls_short_code ON urls(short_code)`,
		`CREATE INDEX IF NOT EXISTS idx_urls_created_at ON urls(created_at)`,
	},
	positional: true,
	textTime:   true,
	isUniqueViolation: func(err error) bool {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) {
			code := sqliteErr.Code()
			if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
				return true
			}
			if code&0xff != sqlite3.SQLITE_CONSTRAINT {
				return false
			}
		}
		return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
	},
}

var placeholder = regexp.MustCompile(`\$\d+`)

// q rewrites $N placeholders for engines that bind by position.
func (d Dialect) q(query string) string {
	if !d.positional {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

const sqliteTimeLayout = "2006-01-02 15:04:05.000000-07:00"

func (d Dialect) timeArg(t time.Time) any {
	if d.textTime {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// nullTime scans a timestamp returned either natively or as text.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	sqliteTimeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (n *nullTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = x.UTC(), true
		return nil
	case []byte:
		return n.parse(string(x))
	case string:
		return n.parse(x)
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

// NewPostgres connects to Postgres through the pgx stdlib driver and prepares the schema.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*URLRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	r := CreateURLRepository(db, logger, Postgres)
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return r, nil
}

// NewSQLite opens (or creates) the SQLite database at path and prepares the schema.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*URLRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logger.Warn("sqlite pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	r := CreateURLRepository(db, logger, SQLite)
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return r, nil
}
