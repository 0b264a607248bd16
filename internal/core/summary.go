package core

import "time"

// CategoryStats aggregates one category's entries for a period.
type CategoryStats struct {
	Category      Category
	TotalAmount   float64
	TotalQuantity float64
	// EntryCount counts days the service came (amount >= 0);
	// MissedCount counts days explicitly marked not-occurred.
	EntryCount    int
	MissedCount   int
	LastEntryDate time.Time
}

// MonthlySummary is the per-category rollup for a single period key.
type MonthlySummary struct {
	PeriodKey  string
	ByCategory map[Category]CategoryStats
}

// Total returns the summed amount across all categories, ignoring
// not-occurred sentinels.
func (s MonthlySummary) Total() float64 {
	var total float64
	for _, st := range s.ByCategory {
		total += st.TotalAmount
	}
	return total
}
