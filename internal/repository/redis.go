package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/storage"
)

const (
	redisKeyPrefix = "shortlink:url:"
	redisSeqKey    = "shortlink:seq"
	redisActiveKey = "shortlink:active"
)

// Every mutation is one Lua script so that the check and the write happen atomically.
var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local id = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1],
	'id', id,
	'original_url', ARGV[1],
	'short_code', ARGV[2],
	'created_at', ARGV[3],
	'expires_at', ARGV[4],
	'clicks', 0,
	'is_active', 1)
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[2])
return id
`)

	updateScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return false
end
redis.call('HSET', KEYS[1], 'original_url', ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

	deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return 0
end
redis.call('HSET', KEYS[1], 'is_active', 0)
redis.call('ZREM', KEYS[2], ARGV[1])
return 1
`)

	incrementScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return 0
end
return redis.call('HINCRBY', KEYS[1], 'clicks', 1)
`)
)

// RedisRepository stores each record as a hash and keeps active codes in a
// sorted set scored by creation time.
type RedisRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRepository(client *redis.Client, logger *zap.Logger) *RedisRepository {
	return &RedisRepository{
		client: client,
		logger: logger,
	}
}

// NewRedis dials addr and checks the connection.
func NewRedis(ctx context.Context, addr string, logger *zap.Logger) (*RedisRepository, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRepository(rdb, logger), nil
}

func recordKey(short string) string {
	return redisKeyPrefix + short
}

func (r *RedisRepository) Write(ctx context.Context, v storage.URLRecord) (*storage.URLRecord, error) {
	created := v
	created.Clicks = 0
	created.IsActive = true
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	expires := ""
	if v.ExpiresAt != nil {
		expires = strconv.FormatInt(v.ExpiresAt.UnixMicro(), 10)
	}

	id, err := createScript.Run(ctx, r.client,
		[]string{recordKey(v.Short), redisSeqKey, redisActiveKey},
		created.Original, created.Short, created.CreatedAt.UnixMicro(), expires,
	).Int64()
	if err != nil {
		r.logger.Error("redis create failed", zap.String("short", v.Short), zap.Error(err))
		return nil, fmt.Errorf("redis create: %w", err)
	}
	if id == 0 {
		return nil, storage.ErrConflict
	}

	created.ID = id
	return &created, nil
}

func (r *RedisRepository) FindByShort(ctx context.Context, short string) (*storage.URLRecord, error) {
	fields, err := r.client.HGetAll(ctx, recordKey(short)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis find: %w", err)
	}

	rec, err := parseRecord(fields)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, storage.ErrNotFound
	}

	return rec, nil
}

// Exists sees soft-deleted records too: their hashes are never removed.
func (r *RedisRepository) Exists(ctx context.Context, short string) (bool, error) {
	n, err := r.client.Exists(ctx, recordKey(short)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}

	return n > 0, nil
}

func (r *RedisRepository) UpdateOriginal(ctx context.Context, short string, original string) (*storage.URLRecord, error) {
	res, err := updateScript.Run(ctx, r.client, []string{recordKey(short)}, original).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis update: %w", err)
	}

	flat, ok := res.([]interface{})
	if !ok || len(flat)%2 != 0 {
		return nil, fmt.Errorf("redis update: unexpected reply %T", res)
	}

	fields := make(map[string]string, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		fields[k] = v
	}

	return parseRecord(fields)
}

func (r *RedisRepository) Delete(ctx context.Context, short string) error {
	n, err := deleteScript.Run(ctx, r.client, []string{recordKey(short), redisActiveKey}, short).Int64()
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (r *RedisRepository) IncrementClicks(ctx context.Context, short string) error {
	if err := incrementScript.Run(ctx, r.client, []string{recordKey(short)}).Err(); err != nil {
		return fmt.Errorf("redis increment: %w", err)
	}

	return nil
}

func (r *RedisRepository) ReadActive(ctx context.Context) ([]storage.URLRecord, error) {
	codes, err := r.client.ZRevRange(ctx, redisActiveKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, 0, len(codes))
	for _, code := range codes {
		cmds = append(cmds, pipe.HGetAll(ctx, recordKey(code)))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("redis list: %w", err)
		}
	}

	records := make([]storage.URLRecord, 0, len(cmds))
	for _, cmd := range cmds {
		rec, err := parseRecord(cmd.Val())
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.IsActive {
			records = append(records, *rec)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})

	return records, nil
}

func (r *RedisRepository) PingContext(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func parseRecord(fields map[string]string) (*storage.URLRecord, error) {
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}

	var (
		rec storage.URLRecord
		err error
	)

	if rec.ID, err = strconv.ParseInt(fields["id"], 10, 64); err != nil {
		return nil, fmt.Errorf("redis record id: %w", err)
	}
	if rec.Clicks, err = strconv.ParseInt(fields["clicks"], 10, 64); err != nil {
		return nil, fmt.Errorf("redis record clicks: %w", err)
	}

	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis record created_at: %w", err)
	}
	rec.CreatedAt = time.UnixMicro(created).UTC()

	if s := fields["expires_at"]; s != "" {
		micros, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis record expires_at: %w", err)
		}
		t := time.UnixMicro(micros).UTC()
		rec.ExpiresAt = &t
	}

	rec.Original = fields["original_url"]
	rec.Short = fields["short_code"]
	rec.IsActive = fields["is_active"] == "1"

	return &rec, nil
}
