package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/storage"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisRepository(client, zap.NewNop()), mr
}

func TestRedis_WriteAndFind(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
	expires := created.Add(time.Hour)

	r, err := repo.Write(ctx, storage.URLRecord{
		Original:  "https://example.com",
		Short:     "abc123",
		CreatedAt: created,
		ExpiresAt: &expires,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, "1", mr.HGet("shortlink:url:abc123", "is_active"))

	found, err := repo.FindByShort(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", found.Original)
	assert.Equal(t, created, found.CreatedAt)
	require.NotNil(t, found.ExpiresAt)
	assert.Equal(t, expires, *found.ExpiresAt)

	_, err = repo.Write(ctx, storage.URLRecord{Original: "https://other.com", Short: "abc123"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = repo.FindByShort(ctx, "nothing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedis_SoftDelete(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	_, err := repo.Write(ctx, storage.URLRecord{Original: "https://example.com", Short: "gone01"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "gone01"))
	assert.ErrorIs(t, repo.Delete(ctx, "gone01"), storage.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "never1"), storage.ErrNotFound)

	_, err = repo.FindByShort(ctx, "gone01")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	exists, err := repo.Exists(ctx, "gone01")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.UpdateOriginal(ctx, "gone01", "https://new.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.IncrementClicks(ctx, "gone01"))

	_, err = repo.Write(ctx, storage.URLRecord{Original: "https://again.com", Short: "gone01"})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestRedis_UpdateOriginal(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	created, err := repo.Write(ctx, storage.URLRecord{Original: "https://old.com", Short: "upd001"})
	require.NoError(t, err)
	require.NoError(t, repo.IncrementClicks(ctx, "upd001"))

	updated, err := repo.UpdateOriginal(ctx, "upd001", "https://new.com")
	require.NoError(t, err)
	assert.Equal(t, "https://new.com", updated.Original)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, int64(1), updated.Clicks)
	assert.Nil(t, updated.ExpiresAt)

	_, err = repo.UpdateOriginal(ctx, "absent", "https://new.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedis_ConcurrentIncrements(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	_, err := repo.Write(ctx, storage.URLRecord{Original: "https://hot.com", Short: "hot001"})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementClicks(ctx, "hot001"))
		}()
	}
	wg.Wait()

	r, err := repo.FindByShort(ctx, "hot001")
	require.NoError(t, err)
	assert.Equal(t, int64(n), r.Clicks)

	// unknown codes do not create keys
	require.NoError(t, repo.IncrementClicks(ctx, "ghost1"))
	exists, err := repo.Exists(ctx, "ghost1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedis_ReadActive(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	records, err := repo.ReadActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range []string{"s1", "s2", "s3"} {
		_, err := repo.Write(ctx, storage.URLRecord{
			Original:  "https://" + code + ".com",
			Short:     code,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.Delete(ctx, "s2"))

	records, err = repo.ReadActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "s3", records[0].Short)
	assert.Equal(t, "s1", records[1].Short)
}

func TestRedis_PingContext(t *testing.T) {
	repo, mr := newRedisRepo(t)

	assert.NoError(t, repo.PingContext(context.Background()))

	mr.Close()
	assert.Error(t, repo.PingContext(context.Background()))
}
