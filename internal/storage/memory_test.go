package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/shortlink/internal/storage"
)

func TestMemoryStorage_WriteAndFind(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()

	record := storage.URLRecord{
		Original: "https://example.com",
		Short:    "abc123",
	}

	// Write
	result, err := mem.Write(context.Background(), record)
	assert.NoError(t, err)
	assert.Equal(t, record.Original, result.Original)
	assert.Equal(t, int64(1), result.ID)
	assert.Equal(t, int64(0), result.Clicks)
	assert.True(t, result.IsActive)
	assert.False(t, result.CreatedAt.IsZero())

	// Write same short again - should fail
	_, err = mem.Write(context.Background(), record)
	assert.EqualError(t, err, "already exists")

	// Find by short
	found, err := mem.FindByShort(context.Background(), "abc123")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com", found.Original)

	// Find non-existing short
	_, err = mem.FindByShort(context.Background(), "notfound")
	assert.EqualError(t, err, "not found")
}

func TestMemoryStorage_IDsAreMonotonic(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	first, err := mem.Write(ctx, storage.URLRecord{Short: "s1", Original: "https://1.com"})
	require.NoError(t, err)
	second, err := mem.Write(ctx, storage.URLRecord{Short: "s2", Original: "https://2.com"})
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
}

func TestMemoryStorage_SoftDelete(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	_, err := mem.Write(ctx, storage.URLRecord{Short: "toDel", Original: "https://del.com"})
	require.NoError(t, err)

	require.NoError(t, mem.Delete(ctx, "toDel"))

	_, err = mem.FindByShort(ctx, "toDel")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// second delete is reported as not found
	assert.ErrorIs(t, mem.Delete(ctx, "toDel"), storage.ErrNotFound)

	// the code stays reserved
	exists, err := mem.Exists(ctx, "toDel")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = mem.Write(ctx, storage.URLRecord{Short: "toDel", Original: "https://other.com"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// inactive records cannot be updated or clicked
	_, err = mem.UpdateOriginal(ctx, "toDel", "https://new.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mem.IncrementClicks(ctx, "toDel"))
}

func TestMemoryStorage_UpdateOriginal(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	created, err := mem.Write(ctx, storage.URLRecord{Short: "upd", Original: "https://old.com"})
	require.NoError(t, err)
	require.NoError(t, mem.IncrementClicks(ctx, "upd"))

	updated, err := mem.UpdateOriginal(ctx, "upd", "https://new.com")
	require.NoError(t, err)
	assert.Equal(t, "https://new.com", updated.Original)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, int64(1), updated.Clicks)

	_, err = mem.UpdateOriginal(ctx, "missing", "https://new.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryStorage_IncrementClicks(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	_, err := mem.Write(ctx, storage.URLRecord{Short: "hot", Original: "https://hot.com"})
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, mem.IncrementClicks(ctx, "hot"))
		}()
	}
	wg.Wait()

	r, err := mem.FindByShort(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, int64(n), r.Clicks)

	// unknown code is a no-op
	assert.NoError(t, mem.IncrementClicks(ctx, "unknown"))
}

func TestMemoryStorage_ReadActive(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	records, err := mem.ReadActive(ctx)
	assert.NoError(t, err)
	assert.Len(t, records, 0)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range []string{"s1", "s2", "s3"} {
		_, err := mem.Write(ctx, storage.URLRecord{
			Short:     code,
			Original:  "https://" + code + ".com",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	require.NoError(t, mem.Delete(ctx, "s2"))

	records, err = mem.ReadActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "s3", records[0].Short)
	assert.Equal(t, "s1", records[1].Short)
}

func TestMemoryStorage_ConcurrentSameCode(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, conflicts := 0, 0

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := mem.Write(ctx, storage.URLRecord{Short: "race", Original: "https://race.com"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, storage.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func TestMemoryStorage_PingContext(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()

	err := mem.PingContext(context.Background())
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}
