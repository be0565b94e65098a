// Package repository holds the durable Storage backends: Postgres and SQLite
// through database/sql, and Redis through Lua scripts.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/metrics"
	"github.com/atinyakov/shortlink/internal/storage"
)

const dbTimeout = 5 * time.Second

const recordColumns = "id, original_url, short_code, created_at, expires_at, clicks, is_active"

// URLRepository implements the URL store on top of database/sql. The SQL
// flavour is picked by its Dialect.
type URLRepository struct {
	db      *sql.DB
	logger  *zap.Logger
	dialect Dialect
}

func CreateURLRepository(db *sql.DB, logger *zap.Logger, dialect Dialect) *URLRepository {
	return &URLRepository{
		db:      db,
		logger:  logger,
		dialect: dialect,
	}
}

// Migrate creates the urls table and its indexes when they are missing.
func (r *URLRepository) Migrate(ctx context.Context) error {
	for _, stmt := range r.dialect.schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migration: %w", r.dialect.name, err)
		}
	}

	r.logger.Info("database schema ready", zap.String("dialect", r.dialect.name))
	return nil
}

func (r *URLRepository) observe(op string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(r.dialect.name, op).Observe(time.Since(start).Seconds())
}

func (r *URLRepository) Write(ctx context.Context, v storage.URLRecord) (*storage.URLRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	defer r.observe("insert", time.Now())

	created := v
	created.Clicks = 0
	created.IsActive = true
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	var expires any
	if v.ExpiresAt != nil {
		expires = r.dialect.timeArg(*v.ExpiresAt)
	}

	row := r.db.QueryRowContext(ctx, r.dialect.q(
		"INSERT INTO urls(original_url, short_code, created_at, expires_at, clicks, is_active) VALUES ($1, $2, $3, $4, 0, TRUE) RETURNING id",
	), created.Original, created.Short, r.dialect.timeArg(created.CreatedAt), expires)

	if err := row.Scan(&created.ID); err != nil {
		if r.dialect.isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		r.logger.Error("insert failed", zap.String("short", v.Short), zap.Error(err))
		return nil, fmt.Errorf("insert url: %w", err)
	}

	return &created, nil
}

func (r *URLRepository) FindByShort(ctx context.Context, short string) (*storage.URLRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	defer r.observe("select", time.Now())

	row := r.db.QueryRowContext(ctx, r.dialect.q(
		"SELECT "+recordColumns+" FROM urls WHERE short_code = $1 AND is_active = TRUE",
	), short)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find url: %w", err)
	}

	return rec, nil
}

// Exists checks every row, soft-deleted ones included.
func (r *URLRepository) Exists(ctx context.Context, short string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	defer r.observe("exists", time.Now())

	var exists bool
	err := r.db.QueryRowContext(ctx, r.dialect.q(
		"SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1)",
	), short).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check url: %w", err)
	}

	return exists, nil
}

func (r *URLRepository) UpdateOriginal(ctx context.Context, short string, original string) (*storage.URLRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	defer r.observe("update", time.Now())

	row := r.db.QueryRowContext(ctx, r.dialect.q(
		"UPDATE urls SET original_url = $1 WHERE short_code = $2 AND is_active = TRUE RETURNING "+recordColumns,
	), original, short)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("update url: %w", err)
	}

	return rec, nil
}

func (r *URLRepository) Delete(ctx context.Context, short string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	defer r.observe("delete", time.Now())

	res, err := r.db.ExecContext(ctx, r.dialect.q(
		"UPDATE urls SET is_active = FALSE WHERE short_code = $1 AND is_active = TRUE",
	), short)
	if err != nil {
		return fmt.Errorf("delete url: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete url: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// IncrementClicks adds one click in a single statement. Unknown and inactive
// codes match no row and are ignored.
func (r *URLRepository) IncrementClicks(ctx context.Context, short string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	defer r.observe("increment", time.Now())

	_, err := r.db.ExecContext(ctx, r.dialect.q(
		"UPDATE urls SET clicks = clicks + 1 WHERE short_code = $1 AND is_active = TRUE",
	), short)
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}

	return nil
}

func (r *URLRepository) ReadActive(ctx context.Context) ([]storage.URLRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	defer r.observe("list", time.Now())

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM urls WHERE is_active = TRUE ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	defer rows.Close()

	records := make([]storage.URLRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list urls: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}

	return records, nil
}

func (r *URLRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *URLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*storage.URLRecord, error) {
	var (
		rec     storage.URLRecord
		created nullTime
		expires nullTime
	)

	if err := row.Scan(&rec.ID, &rec.Original, &rec.Short, &created, &expires, &rec.Clicks, &rec.IsActive); err != nil {
		return nil, err
	}

	rec.CreatedAt = created.Time
	if expires.Valid {
		t := expires.Time
		rec.ExpiresAt = &t
	}

	return &rec, nil
}
