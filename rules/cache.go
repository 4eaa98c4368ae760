package rules

import "time"

// RulesCache provides an abstraction for caching the enabled rule set.
// Every mutation bumps a generation so that a snapshot read before the
// mutation cannot be stored after it.
type RulesCache interface {
	// Get retrieves cached rules, returns nil if cache miss or expired
	Get() []*Rule

	// Generation returns the current invalidation generation
	Generation() uint64

	// Set stores rules if no invalidation happened since generation was read.
	// Reports whether the rules were stored.
	Set(generation uint64, rules []*Rule) bool

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for rule caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0, // No TTL - only invalidate on mutations
	}
}
