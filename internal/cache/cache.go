// Package cache provides the short-lived read cache for dashboard and
// quota responses, with substring invalidation on writes.
package cache

import (
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"resumeboost/internal/config"
)

// Cache wraps an in-process TTL store keyed by user-scoped strings.
type Cache struct {
	store *gocache.Cache
}

func New(cfg config.CacheConfig) *Cache {
	return &Cache{store: gocache.New(cfg.DefaultTTL, cfg.CleanupInterval)}
}

func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

func (c *Cache) Set(key string, value any) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Invalidate removes every entry whose key contains the fragment.
func (c *Cache) Invalidate(fragment string) {
	for key := range c.store.Items() {
		if strings.Contains(key, fragment) {
			c.store.Delete(key)
		}
	}
}

func (c *Cache) InvalidateAll() {
	c.store.Flush()
}

// Key builders. All user-derived cache entries share the user ID as a
// fragment so a single Invalidate(userID) clears them.

func DashboardMetricsKey(userID string) string {
	return fmt.Sprintf("dashboard:metrics:%s", userID)
}

func AnalysisHistoryKey(userID string, page, pageSize int) string {
	return fmt.Sprintf("dashboard:history:%s:%d:%d", userID, page, pageSize)
}

func QuotaKey(userID string) string {
	return fmt.Sprintf("quota:%s", userID)
}
