package cache

import (
	"context"
	"sync"
	"time"
)

// LevelCache holds the membership level a user had right before a level
// change. An entry lives from the pre-change hook until the post-change
// handler of the same operation consumes it.
type LevelCache interface {
	Put(ctx context.Context, userID string, levelID uint) error
	Get(ctx context.Context, userID string) (levelID uint, ok bool, err error)
	Delete(ctx context.Context, userID string) error
}

// DefaultLevelTTL bounds how long an entry survives when its post-change
// handler never runs, for example after an aborted change.
const DefaultLevelTTL = 10 * time.Minute

type levelEntry struct {
	levelID   uint
	expiresAt time.Time
}

// MemoryLevelCache keeps entries in process memory. Entries are lost when the
// pre-change and post-change hooks run in different processes; the
// cancellation path then finds nothing and does not notify the gateway.
type MemoryLevelCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]levelEntry
	now     func() time.Time
}

func NewMemoryLevelCache(ttl time.Duration) *MemoryLevelCache {
	if ttl <= 0 {
		ttl = DefaultLevelTTL
	}
	return &MemoryLevelCache{
		ttl:     ttl,
		entries: make(map[string]levelEntry),
		now:     time.Now,
	}
}

func (c *MemoryLevelCache) Put(_ context.Context, userID string, levelID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = levelEntry{levelID: levelID, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Get treats an expired entry as absent and drops it.
func (c *MemoryLevelCache) Get(_ context.Context, userID string) (uint, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return 0, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, userID)
		return 0, false, nil
	}
	return entry.levelID, true, nil
}

func (c *MemoryLevelCache) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

// Len reports the number of live entries and drops expired ones.
func (c *MemoryLevelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for userID, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, userID)
		}
	}
	return len(c.entries)
}
