package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrLockNotHeld: блокировка истекла и, возможно, уже взята другим.
var ErrLockNotHeld = errors.New("lock not held")

// снимаем только свою блокировку
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock: SET NX с TTL: одну накладную проводит только один оператор.
type RedisLock struct {
	client *redis.Client
	prefix string
}

func NewRedisLock(addr, password string, db int) *RedisLock {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisLock{client: client, prefix: "stock-recon:"}
}

func NewRedisLockFromClient(client *redis.Client) *RedisLock {
	return &RedisLock{client: client, prefix: "stock-recon:"}
}

func (l *RedisLock) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping: %w", err)
	}
	return nil
}

func (l *RedisLock) Close() error {
	return l.client.Close()
}

// TryLock возвращает токен владельца; без него Unlock не снимет блокировку.
func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (l *RedisLock) Unlock(ctx context.Context, key, token string) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("cache: unlock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// LocalLock: блокировка в памяти процесса, когда redis не настроен.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

type localEntry struct {
	token string
	until time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLock) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.until) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = localEntry{token: token, until: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLock) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.held[key]
	if !ok || e.token != token {
		return ErrLockNotHeld
	}
	delete(l.held, key)
	return nil
}
