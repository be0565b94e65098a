package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/storage"
)

var columns = []string{"id", "original_url", "short_code", "created_at", "expires_at", "clicks", "is_active"}

// Helper to set up a mock DB and repository
func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *URLRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := CreateURLRepository(db, zap.NewNop(), Postgres)
	return db, mock, repo
}

func TestMigrate(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS urls`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_urls_short_code`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_urls_created_at`).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	record := storage.URLRecord{
		Original:  "https://example.com",
		Short:     "abc123",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery(`INSERT INTO urls\(original_url, short_code, created_at, expires_at, clicks, is_active\) VALUES \(\$1, \$2, \$3, \$4, 0, TRUE\) RETURNING id`).
		WithArgs(record.Original, record.Short, sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	result, err := repo.Write(context.Background(), record)

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ID)
	assert.Equal(t, record.Short, result.Short)
	assert.True(t, result.IsActive)
	assert.Equal(t, int64(0), result.Clicks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_UniqueViolation(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO urls`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.Write(context.Background(), storage.URLRecord{Original: "https://example.com", Short: "abc123"})

	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_OtherError(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(`INSERT INTO urls`).WillReturnError(boom)

	_, err := repo.Write(context.Background(), storage.URLRecord{Original: "https://example.com", Short: "abc123"})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, storage.ErrConflict)
}

func TestFindByShort(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := created.Add(24 * time.Hour)

	mock.ExpectQuery(`SELECT id, original_url, short_code, created_at, expires_at, clicks, is_active FROM urls WHERE short_code = \$1 AND is_active = TRUE`).
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), "https://example.com", "abc123", created, expires, int64(4), true))

	result, err := repo.FindByShort(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com", result.Original)
	assert.Equal(t, created, result.CreatedAt)
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, expires, *result.ExpiresAt)
	assert.Equal(t, int64(4), result.Clicks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByShort_NotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM urls WHERE short_code = \$1`).
		WithArgs("nothing").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.FindByShort(context.Background(), "nothing")

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExists(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM urls WHERE short_code = \$1\)`).
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "abc123")

	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOriginal(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE urls SET original_url = \$1 WHERE short_code = \$2 AND is_active = TRUE RETURNING`).
		WithArgs("https://new.com", "abc123").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), "https://new.com", "abc123", created, nil, int64(2), true))

	result, err := repo.UpdateOriginal(context.Background(), "abc123", "https://new.com")

	require.NoError(t, err)
	assert.Equal(t, "https://new.com", result.Original)
	assert.Nil(t, result.ExpiresAt)

	mock.ExpectQuery(`UPDATE urls SET original_url`).
		WithArgs("https://new.com", "gone").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err = repo.UpdateOriginal(context.Background(), "gone", "https://new.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(`UPDATE urls SET is_active = FALSE WHERE short_code = \$1 AND is_active = TRUE`).
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE urls SET is_active = FALSE`).
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), "abc123"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "abc123"), storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementClicks(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(`UPDATE urls SET clicks = clicks \+ 1 WHERE short_code = \$1 AND is_active = TRUE`).
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE urls SET clicks = clicks \+ 1`).
		WithArgs("unknown").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.IncrementClicks(context.Background(), "abc123"))
	assert.NoError(t, repo.IncrementClicks(context.Background(), "unknown"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadActive(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM urls WHERE is_active = TRUE ORDER BY created_at DESC, id DESC`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(2), "https://example2.com", "abc456", created.Add(time.Hour), nil, int64(0), true).
			AddRow(int64(1), "https://example.com", "abc123", created, nil, int64(3), true))

	result, err := repo.ReadActive(context.Background())

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "abc456", result[0].Short)
	assert.Equal(t, int64(3), result[1].Clicks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingContext(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	repo := CreateURLRepository(db, zap.NewNop(), Postgres)

	mock.ExpectPing()
	assert.NoError(t, repo.PingContext(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectRebind(t *testing.T) {
	q := "UPDATE urls SET original_url = $1 WHERE short_code = $2"

	assert.Equal(t, q, Postgres.q(q))
	assert.Equal(t, "UPDATE urls SET original_url = ? WHERE short_code = ?", SQLite.q(q))
}

func TestNullTimeScan(t *testing.T) {
	var n nullTime

	require.NoError(t, n.Scan(nil))
	assert.False(t, n.Valid)

	require.NoError(t, n.Scan("2024-01-01 10:00:00.000000+00:00"))
	assert.True(t, n.Valid)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), n.Time)

	require.NoError(t, n.Scan([]byte("2024-01-01T10:00:00Z")))
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), n.Time)

	assert.Error(t, n.Scan("yesterday"))
	assert.Error(t, n.Scan(42))
}
