package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the canonical Redis backend.
// The database index in the URL selects the attribute namespace; the login
// namespace always uses the next index.
type RedisConfig struct {
	ConnectionURL  string        `env:"SESSION_REDIS_URL" envDefault:"redis://localhost:6379/0"` // format: redis://:password@host:port/db
	RetryAttempts  int           `env:"SESSION_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"SESSION_REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"SESSION_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	PoolSize       int           `env:"SESSION_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns   int           `env:"SESSION_REDIS_MIN_IDLE_CONNS" envDefault:"0"`
	PoolTimeout    time.Duration `env:"SESSION_REDIS_POOL_TIMEOUT" envDefault:"4s"`
}

// RedisStore implements Store over two go-redis clients pointed at adjacent
// logical databases: attributes at index D, login records at D+1.
type RedisStore struct {
	attr  redis.UniversalClient
	login redis.UniversalClient
}

// NewRedisStore wraps already-connected clients. The attr client must select
// the attribute database and the login client the login database.
func NewRedisStore(attr, login redis.UniversalClient) *RedisStore {
	return &RedisStore{attr: attr, login: login}
}

// ConnectRedis dials the Redis server described by cfg and returns a store
// with both namespaces open. Connection attempts are retried per cfg; each
// attempt must answer a ping on both databases before the store is returned.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConnString, err)
	}
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.PoolTimeout = cfg.PoolTimeout

	loginOpt := *opt
	loginOpt.DB = opt.DB + 1

	attempts := max(cfg.RetryAttempts, 1)
	for range attempts {
		attr := redis.NewClient(opt)
		login := redis.NewClient(&loginOpt)

		if attr.Ping(ctx).Err() == nil && login.Ping(ctx).Err() == nil {
			return NewRedisStore(attr, login), nil
		}

		_ = attr.Close()
		_ = login.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, ErrNotReady
}

// Close releases both client pools.
func (s *RedisStore) Close() error {
	return errors.Join(s.attr.Close(), s.login.Close())
}

// Healthcheck returns a probe function that pings both namespaces.
func (s *RedisStore) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		if err := s.attr.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrUnavailable, err)
		}
		if err := s.login.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrUnavailable, err)
		}
		return nil
	}
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return put(ctx, s.attr, key, value, ttl)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, s.attr, key)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return del(ctx, s.attr, key)
}

func (s *RedisStore) Contains(ctx context.Context, key string) (bool, error) {
	return contains(ctx, s.attr, key)
}

func (s *RedisStore) Size(ctx context.Context) (int64, error) {
	return size(ctx, s.attr)
}

func (s *RedisStore) LoginPut(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return put(ctx, s.login, key, value, ttl)
}

func (s *RedisStore) LoginGet(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, s.login, key)
}

func (s *RedisStore) LoginDelete(ctx context.Context, key string) error {
	return del(ctx, s.login, key)
}

func (s *RedisStore) LoginContains(ctx context.Context, key string) (bool, error) {
	return contains(ctx, s.login, key)
}

func (s *RedisStore) LoginSize(ctx context.Context) (int64, error) {
	return size(ctx, s.login)
}

// SET with EX sets the value and arms the TTL atomically, covering both the
// create and refresh cases in one round trip.
func put(ctx context.Context, c redis.UniversalClient, key string, value []byte, ttl time.Duration) error {
	if err := c.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func get(ctx context.Context, c redis.UniversalClient, key string) ([]byte, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrUnavailable, err)
	}
	return data, nil
}

func del(ctx context.Context, c redis.UniversalClient, key string) error {
	if err := c.Del(ctx, key).Err(); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func contains(ctx context.Context, c redis.UniversalClient, key string) (bool, error) {
	n, err := c.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Join(ErrUnavailable, err)
	}
	return n > 0, nil
}

func size(ctx context.Context, c redis.UniversalClient) (int64, error) {
	n, err := c.DBSize(ctx).Result()
	if err != nil {
		return 0, errors.Join(ErrUnavailable, err)
	}
	return n, nil
}
