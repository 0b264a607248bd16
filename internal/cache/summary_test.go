package cache

import (
	"testing"
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
)

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) = hit, want evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = (%v, %v), want (2, true)", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_GetRefreshesRecency(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")    // "b" is now least recently used
	c.Set("c", 3) // evicts "b"

	if _, ok := c.Get("a"); !ok {
		t.Error("Get(a) = miss, recently used entry was evicted")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) = hit, want evicted")
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache[int](10, time.Nanosecond)

	c.Set("a", 1)
	time.Sleep(time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("Get() = hit for expired entry")
	}
}

func TestSummaryCache_KeyedByUserAndPeriod(t *testing.T) {
	c := NewSummaryCache(10, time.Minute)
	s := &core.MonthlySummary{PeriodKey: "Mar 2024"}

	c.Set("user-1", "Mar 2024", s)

	if got, ok := c.Get("user-1", "Mar 2024"); !ok || got.PeriodKey != "Mar 2024" {
		t.Errorf("Get() = (%v, %v), want cached summary", got, ok)
	}
	if _, ok := c.Get("user-2", "Mar 2024"); ok {
		t.Error("Get() = hit for another user")
	}
	if _, ok := c.Get("user-1", "Apr 2024"); ok {
		t.Error("Get() = hit for another period")
	}

	c.Invalidate("user-1", "Mar 2024")
	if _, ok := c.Get("user-1", "Mar 2024"); ok {
		t.Error("Get() = hit after Invalidate()")
	}
}

func TestSummaryCache_InvalidateAll(t *testing.T) {
	c := NewSummaryCache(10, time.Minute)
	c.Set("user-1", "Mar 2024", &core.MonthlySummary{PeriodKey: "Mar 2024"})
	c.Set("user-2", "Apr 2024", &core.MonthlySummary{PeriodKey: "Apr 2024"})

	c.InvalidateAll()

	if c.Size() != 0 {
		t.Errorf("Size() = %d after InvalidateAll(), want 0", c.Size())
	}
}
