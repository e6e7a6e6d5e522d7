package cache

import (
	"context"
	"strconv"
	"time"

	redis "github.com/go-redis/redis/v8"
)

const (
	fieldData  = "data"
	fieldMtime = "mtime"
)

// RedisCache stores blobs as hashes holding the data and its write time so
// several host processes share one parsed model per tenant.
type RedisCache struct {
	client   redis.UniversalClient
	prefix   string
	lifetime time.Duration
}

// NewRedisCache creates a redis backed cache. Keys are stored as prefix+key.
func NewRedisCache(client redis.UniversalClient, prefix string, lifetime time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, lifetime: lifetime}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	fields, err := c.client.HGetAll(ctx, c.prefix+key).Result()
	if err != nil {
		return Entry{}, false, err
	}
	data, ok := fields[fieldData]
	if !ok {
		return Entry{}, false, nil
	}
	nanos, err := strconv.ParseInt(fields[fieldMtime], 10, 64)
	if err != nil {
		return Entry{}, false, nil
	}
	return Entry{Data: []byte(data), ModTime: time.Unix(0, nanos)}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte) error {
	k := c.prefix + key
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, fieldData, data, fieldMtime, strconv.FormatInt(time.Now().UnixNano(), 10))
		if c.lifetime > 0 {
			pipe.Expire(ctx, k, c.lifetime)
		}
		return nil
	})
	return err
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
