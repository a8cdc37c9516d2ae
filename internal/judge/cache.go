package judge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache stores verdicts by CacheKey. Misses and backend errors look the
// same to the caller: the judge is asked again.
type Cache interface {
	Get(ctx context.Context, key string) (Verdict, bool)
	Set(ctx context.Context, key string, v Verdict)
}

// CacheKey identifies a verdict by judge model and the exact rendered prompt.
func CacheKey(model, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

type MemoryCache struct {
	cache *lru.Cache[string, Verdict]
}

func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[string, Verdict](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{cache: c}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) (Verdict, bool) {
	return m.cache.Get(key)
}

func (m *MemoryCache) Set(_ context.Context, key string, v Verdict) {
	m.cache.Add(key, v)
}

const redisKeyPrefix = "worldbench:verdict:"

// RedisCache shares verdicts between machines and across re-evaluations.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to url (redis://host:port/db) and pings it.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (Verdict, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		return Verdict{}, false
	}
	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return Verdict{}, false
	}
	return v, true
}

func (r *RedisCache) Set(ctx context.Context, key string, v Verdict) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl)
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
