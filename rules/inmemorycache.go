package rules

import (
	"sync"
	"time"
)

// InMemoryRulesCache is a simple in-memory implementation of RulesCache
// Thread-safe for concurrent access
type InMemoryRulesCache struct {
	rules      []*Rule
	cachedAt   time.Time
	generation uint64
	config     CacheConfig
	now        func() time.Time
	mu         sync.RWMutex
	isValid    bool
}

// NewInMemoryRulesCache creates a new in-memory rules cache
func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{
		config: config,
		now:    time.Now,
	}
}

// Get retrieves cached rules
// Returns nil if cache is invalid or expired
func (c *InMemoryRulesCache) Get() []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil
	}

	return cloneRules(c.rules)
}

// Generation returns the current invalidation generation
func (c *InMemoryRulesCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Set stores rules in cache unless the cache was invalidated after
// generation was read
func (c *InMemoryRulesCache) Set(generation uint64, rules []*Rule) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return false
	}

	c.rules = cloneRules(rules)
	c.cachedAt = c.now()
	c.isValid = true
	return true
}

// Invalidate clears the cache
func (c *InMemoryRulesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.isValid = false
	c.rules = nil
}

// IsValid returns true if cache contains valid data
func (c *InMemoryRulesCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.validLocked()
}

func (c *InMemoryRulesCache) validLocked() bool {
	if !c.isValid {
		return false
	}

	if c.config.TTL > 0 {
		return c.now().Sub(c.cachedAt) <= c.config.TTL
	}

	return true
}

// cloneRules deep-copies rules so cached entries never alias caller data.
// Always returns a non-nil slice.
func cloneRules(rules []*Rule) []*Rule {
	out := make([]*Rule, len(rules))
	for i, r := range rules {
		out[i] = r.clone()
	}
	return out
}
