package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

// ProfileCache holds profiles for a bounded time so role checks do not hit
// the database on every request.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*models.Profile, bool)
	Set(ctx context.Context, profile *models.Profile)
	Invalidate(ctx context.Context, userID string)
}

type cachedProfile struct {
	profile   models.Profile
	expiresAt time.Time
}

type MemoryProfileCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedProfile
	now     func() time.Time
}

func NewMemoryProfileCache(ttl time.Duration) *MemoryProfileCache {
	return &MemoryProfileCache{
		ttl:     ttl,
		entries: make(map[string]cachedProfile),
		now:     time.Now,
	}
}

func (c *MemoryProfileCache) Get(_ context.Context, userID string) (*models.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, userID)
		return nil, false
	}
	p := e.profile
	return &p, true
}

func (c *MemoryProfileCache) Set(_ context.Context, profile *models.Profile) {
	if profile == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[profile.ID] = cachedProfile{profile: *profile, expiresAt: c.now().Add(c.ttl)}
}

func (c *MemoryProfileCache) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

const profileKeyPrefix = "profile:"

// RedisProfileCache shares cached profiles between instances. Redis
// errors are treated as misses; failed writes are logged.
type RedisProfileCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisProfileCache {
	return &RedisProfileCache{Client: client, TTL: ttl, Logger: log}
}

func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*models.Profile, bool) {
	raw, err := c.Client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if err != nil {
		return nil, false
	}
	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *RedisProfileCache) Set(ctx context.Context, profile *models.Profile) {
	if profile == nil {
		return
	}
	data, err := json.Marshal(profile)
	if err != nil {
		c.warn(fmt.Sprintf("encode profile %s: %v", profile.ID, err))
		return
	}
	if err := c.Client.Set(ctx, profileKeyPrefix+profile.ID, data, c.TTL).Err(); err != nil {
		c.warn(fmt.Sprintf("cache profile %s: %v", profile.ID, err))
	}
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, userID string) {
	if err := c.Client.Del(ctx, profileKeyPrefix+userID).Err(); err != nil {
		c.warn(fmt.Sprintf("invalidate profile %s: %v", userID, err))
	}
}

func (c *RedisProfileCache) warn(msg string) {
	if c.Logger != nil {
		c.Logger.Warn("AUTH", msg)
	}
}
