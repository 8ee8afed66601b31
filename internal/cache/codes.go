// Package cache holds the volatile auth-code index. It accelerates code
// lookup during verification; the durable store stays the source of truth
// for consumption and expiry.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultCleanupInterval = 1 * time.Minute

type entry struct {
	userID    string
	expiresAt time.Time
}

type CodeCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	interval time.Duration
}

func NewCodeCache(cleanupInterval time.Duration) *CodeCache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &CodeCache{
		entries:  make(map[string]entry),
		interval: cleanupInterval,
	}
}

// Set stores the code → user-id mapping for ttl. The error return exists so
// a networked cache can report failures; the in-process store never does.
func (c *CodeCache) Set(code, userID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[code] = entry{
		userID:    userID,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get returns the owning user id when the code is cached and unexpired.
func (c *CodeCache) Get(code string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[code]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.userID, true
}

func (c *CodeCache) Delete(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
}

func (c *CodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start runs the janitor until ctx is cancelled, pruning expired entries.
func (c *CodeCache) Start(ctx context.Context) {
	slog.Info("starting code cache janitor", "component", "cache", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping code cache janitor", "component", "cache")
			return
		case <-ticker.C:
			if pruned := c.prune(); pruned > 0 {
				slog.Info("pruned expired cache entries", "component", "cache", "count", pruned)
			}
		}
	}
}

func (c *CodeCache) prune() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for code, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, code)
			pruned++
		}
	}
	return pruned
}
