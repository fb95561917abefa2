package services

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/geo-bucket/helpers/utils"
	"github.com/geo-bucket/internal/metrics"
)

// LocalKeyLock serialises keys inside one process with a fixed table of slots.
// Distinct keys may share a slot; that only costs some extra waiting.
type LocalKeyLock struct {
	slots []chan struct{}
}

// NewLocalKeyLock creates a lock table with n slots.
func NewLocalKeyLock(n int) *LocalKeyLock {
	if n <= 0 {
		n = 1024
	}
	slots := make([]chan struct{}, n)
	for i := range slots {
		slots[i] = make(chan struct{}, 1)
	}
	return &LocalKeyLock{slots: slots}
}

// Acquire blocks until key's slot is free or ctx is done.
func (l *LocalKeyLock) Acquire(ctx context.Context, key string) (func(), error) {
	slot := l.slots[l.index(key)]
	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *LocalKeyLock) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.slots)))
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisKeyLockConfig configures RedisKeyLock.
type RedisKeyLockConfig struct {
	TTL   time.Duration // lock expiry, bounds the damage of a crashed holder
	Wait  time.Duration // how long to wait for a held lock
	Retry time.Duration // poll interval while waiting
}

// RedisKeyLock is a cross-process key lock (SET NX PX with a token-checked release).
// When Redis fails it falls back to a local lock. When the wait runs out the
// caller proceeds unlocked and the store's unique index arbitrates.
type RedisKeyLock struct {
	client  *redis.Client
	local   *LocalKeyLock
	cfg     RedisKeyLockConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	prefix  string
}

// NewRedisKeyLockWithClient wraps an existing client. The caller owns the client.
func NewRedisKeyLockWithClient(client *redis.Client, cfg RedisKeyLockConfig, local *LocalKeyLock, m *metrics.Metrics, logger *zap.Logger) *RedisKeyLock {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 3 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 25 * time.Millisecond
	}
	if local == nil {
		local = NewLocalKeyLock(0)
	}
	return &RedisKeyLock{
		client:  client,
		local:   local,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		prefix:  "lock:",
	}
}

// Acquire takes the distributed lock for key.
func (l *RedisKeyLock) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	token := utils.GenerateUUID()
	deadline := time.Now().Add(l.cfg.Wait)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.metrics.IncLockFallback()
			l.logger.Warn("Redis lock unavailable, using local lock", zap.String("key", key), zap.Error(err))
			return l.local.Acquire(ctx, key)
		}
		if ok {
			return func() { l.release(lockKey, token) }, nil
		}

		if time.Now().After(deadline) {
			l.logger.Warn("Redis lock wait exceeded, continuing without lock", zap.String("key", key))
			return func() {}, nil
		}

		timer := time.NewTimer(l.cfg.Retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisKeyLock) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil && err != redis.Nil {
		l.logger.Warn("Failed to release redis lock", zap.String("key", lockKey), zap.Error(err))
	}
}
