package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

const keyPrefix = "link:"

// RedisLinkCache stores links as JSON under "link:<code>".
type RedisLinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLinkCache parses a redis:// URL and checks the server is reachable.
func NewRedisLinkCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisLinkCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisLinkCache{client: client, ttl: ttl}, nil
}

func (c *RedisLinkCache) Get(ctx context.Context, code string) (*domain.ShortLink, error) {
	data, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var link domain.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *RedisLinkCache) Set(ctx context.Context, link *domain.ShortLink) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+link.Code, data, c.ttl).Err()
}

func (c *RedisLinkCache) Close() error {
	return c.client.Close()
}

var _ ports.LinkCache = (*RedisLinkCache)(nil)
