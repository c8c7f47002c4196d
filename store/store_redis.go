package store

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists documents in redis, with a small local TinyLFU tier in
// front of it. Documents are durable (no expiration).
type RedisStore struct {
	Data *cache.Cache
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, time.Minute),
	})
	return &RedisStore{
		Data: data,
	}, nil
}

func redisStoreKey(collection, key string) string {
	return "doc/" + collection + "/" + key
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	var val []byte
	err := s.Data.Get(ctx, redisStoreKey(collection, key), &val)
	if err == cache.ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Put(ctx context.Context, collection, key string, val []byte) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisStoreKey(collection, key),
		Value: val,
	})
}

func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	err := s.Data.Delete(ctx, redisStoreKey(collection, key))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
