package cache

import (
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
)

// SummaryCache caches monthly summary aggregates per (user, period).
// Entries are invalidated when a period is written to or synced.
type SummaryCache struct {
	lru *LRUCache[*core.MonthlySummary]
}

// NewSummaryCache creates a summary cache holding at most maxSize periods
func NewSummaryCache(maxSize int, ttl time.Duration) *SummaryCache {
	return &SummaryCache{
		lru: NewLRUCache[*core.MonthlySummary](maxSize, ttl),
	}
}

func summaryKey(userID, periodKey string) string {
	return userID + "|" + periodKey
}

// Get retrieves a cached summary for the given user and period
func (c *SummaryCache) Get(userID, periodKey string) (*core.MonthlySummary, bool) {
	return c.lru.Get(summaryKey(userID, periodKey))
}

// Set stores a summary for the given user and period
func (c *SummaryCache) Set(userID, periodKey string, summary *core.MonthlySummary) {
	c.lru.Set(summaryKey(userID, periodKey), summary)
}

// Invalidate drops the cached summary for the given user and period
func (c *SummaryCache) Invalidate(userID, periodKey string) {
	c.lru.Delete(summaryKey(userID, periodKey))
}

// InvalidateAll drops every cached summary
func (c *SummaryCache) InvalidateAll() {
	c.lru.Purge()
}

// Size returns the number of cached summaries
func (c *SummaryCache) Size() int {
	return c.lru.Size()
}
