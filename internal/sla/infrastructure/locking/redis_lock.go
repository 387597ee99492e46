package locking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// RedisLock is a lease lock shared by every replica. Each acquisition
// stores a random token so only the holder can release it.
type RedisLock struct {
	client *redis.Client
	logger Logger
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLock connects to redis and verifies the connection.
func NewRedisLock(addr, password string, db int, logger Logger) (*RedisLock, error) {
	if addr == "" {
		return nil, errors.New("redis lock: empty addr")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisLock{
		client: client,
		logger: logger,
		prefix: "sla:lock:",
		ttl:    30 * time.Second,
		retry:  50 * time.Millisecond,
	}, nil
}

// Lock polls SET NX until the key is acquired or ctx is done.
func (l *RedisLock) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, errors.New("redis lock: nil client")
	}
	redisKey := l.prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && l.logger != nil {
			l.logger.Printf("redis lock error: release key=%s err=%v", redisKey, err)
		}
	}, nil
}

// Close releases the client.
func (l *RedisLock) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
