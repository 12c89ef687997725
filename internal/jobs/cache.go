package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache shares job snapshots between processes and restarts.
type StatusCache interface {
	Put(ctx context.Context, j Job) error
	Get(ctx context.Context, id string) (Job, bool, error)
}

type MemoryCache struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{jobs: make(map[string]Job)}
}

func (c *MemoryCache) Put(_ context.Context, j Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[j.ID] = j
	return nil
}

func (c *MemoryCache) Get(_ context.Context, id string) (Job, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.jobs[id]
	return j, ok, nil
}

const (
	jobKey      = "gravity:job:%s"
	DefaultTTL  = 24 * time.Hour
	pingTimeout = 5 * time.Second
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Put(ctx context.Context, j Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return c.client.Set(ctx, fmt.Sprintf(jobKey, j.ID), data, c.ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, id string) (Job, bool, error) {
	val, err := c.client.Get(ctx, fmt.Sprintf(jobKey, id)).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("failed to read job %s: %w", id, err)
	}
	var j Job
	if err := json.Unmarshal([]byte(val), &j); err != nil {
		return Job{}, false, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return j, true, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
