package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "greencoin:identity:"

// RedisConfig holds the connection settings of the Redis backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return rdb, nil
}

// RedisStore keeps the identity of one origin under a key without TTL
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore returns the store for origin
func NewRedisStore(rdb *redis.Client, origin string) *RedisStore {
	return &RedisStore{rdb: rdb, key: RedisKey(origin)}
}

// RedisKey is the key holding the identity of origin
func RedisKey(origin string) string {
	return keyPrefix + origin
}

func (s *RedisStore) Get(ctx context.Context) (string, bool, error) {
	id, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get identity: %w", err)
	}
	return id, id != "", nil
}

func (s *RedisStore) Set(ctx context.Context, id string) error {
	if err := s.rdb.Set(ctx, s.key, id, 0).Err(); err != nil {
		return fmt.Errorf("set identity: %w", err)
	}
	return nil
}

// RedisOrigins lists every origin that has an identity
func RedisOrigins(ctx context.Context, rdb *redis.Client) ([]string, error) {
	var origins []string
	iter := rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		origins = append(origins, iter.Val()[len(keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan identities: %w", err)
	}
	return origins, nil
}
