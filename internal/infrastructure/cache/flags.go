// Package cache keeps runtime feature flag overrides from Redis in memory,
// refreshed whenever an update is published.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"partscatalog/internal/core/security"
	"partscatalog/pkg/logger"
)

const (
	// FlagsKey is the Redis hash of overrides, flag name to "true"/"false"
	FlagsKey = "features"
	// FlagsChannel receives a message after FlagsKey changes
	FlagsChannel = "features:changed"
)

// FlagCache implements security.FeatureFlagProvider. Overrides found in
// Redis win; every other flag is answered by the fallback (the startup
// configuration). Operators flip a flag with:
//
//	HSET features ai_analysis false
//	PUBLISH features:changed ai_analysis
type FlagCache struct {
	rdb      redis.UniversalClient
	fallback security.FeatureFlagProvider

	mu        sync.RWMutex
	overrides map[string]bool

	// Lifecycle
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

var _ security.FeatureFlagProvider = (*FlagCache)(nil)

// NewFlagCache creates a flag cache. Call Start to load and follow Redis.
func NewFlagCache(rdb redis.UniversalClient, fallback security.FeatureFlagProvider) *FlagCache {
	return &FlagCache{rdb: rdb, fallback: fallback, overrides: map[string]bool{}}
}

// Start loads the overrides and begins listening for changes.
func (c *FlagCache) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return nil
	}

	if err := c.Reload(ctx); err != nil {
		return err
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pubsub := c.rdb.Subscribe(listenCtx, FlagsChannel)
	if _, err := pubsub.Receive(listenCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", FlagsChannel, err)
	}

	c.cancel = cancel
	c.started = true
	c.wg.Add(1)
	go c.listenLoop(listenCtx, pubsub)

	logger.Info(ctx, "feature flag cache started", "overrides", len(c.snapshot()))
	return nil
}

// Stop ends the listener.
func (c *FlagCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *FlagCache) listenLoop(ctx context.Context, pubsub *redis.PubSub) {
	defer c.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := c.Reload(ctx); err != nil && ctx.Err() == nil {
				logger.Error(ctx, "feature flag reload failed", "error", err, "trigger", msg.Payload)
			}
		}
	}
}

// Reload replaces the overrides with the current content of FlagsKey.
func (c *FlagCache) Reload(ctx context.Context) error {
	raw, err := c.rdb.HGetAll(ctx, FlagsKey).Result()
	if err != nil {
		return fmt.Errorf("load feature flags: %w", err)
	}
	c.replace(parseOverrides(ctx, raw))
	return nil
}

// IsEnabled answers from the overrides, then the fallback.
func (c *FlagCache) IsEnabled(ctx context.Context, flag string) bool {
	c.mu.RLock()
	v, ok := c.overrides[strings.ToLower(flag)]
	c.mu.RUnlock()
	if ok {
		return v
	}
	return c.fallback != nil && c.fallback.IsEnabled(ctx, flag)
}

func (c *FlagCache) replace(overrides map[string]bool) {
	c.mu.Lock()
	c.overrides = overrides
	c.mu.Unlock()
}

func (c *FlagCache) snapshot() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overrides
}

// parseOverrides skips values that are not booleans.
func parseOverrides(ctx context.Context, raw map[string]string) map[string]bool {
	out := make(map[string]bool, len(raw))
	for name, value := range raw {
		enabled, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			logger.Warn(ctx, "ignoring feature flag override", "flag", name, "value", value)
			continue
		}
		out[strings.ToLower(name)] = enabled
	}
	return out
}
