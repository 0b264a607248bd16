package core

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2024, 3, 5, 18, 42, 7, 123, loc)
	got := NormalizeDate(in)
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NormalizeDate = %v, want %v", got, want)
	}
	// Already-normalized input is a fixed point.
	if !NormalizeDate(got).Equal(got) {
		t.Fatalf("NormalizeDate not idempotent")
	}
}

func TestPeriodKeyFor(t *testing.T) {
	if got := PeriodKeyFor(time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)); got != "Mar 2024" {
		t.Fatalf("PeriodKeyFor = %q, want %q", got, "Mar 2024")
	}
}

func TestParsePeriodKey(t *testing.T) {
	if _, err := ParsePeriodKey("March 2024"); err == nil {
		t.Fatalf("expected error for long month name")
	}
	got, err := ParsePeriodKey("Mar 2024")
	if err != nil {
		t.Fatalf("ParsePeriodKey: %v", err)
	}
	if got != "Mar 2024" {
		t.Fatalf("ParsePeriodKey = %q", got)
	}
}

func TestEntryNormalize(t *testing.T) {
	e := Entry{
		UserID:   "u1",
		Category: Milk,
		Date:     time.Date(2024, 3, 5, 7, 30, 0, 0, time.UTC),
	}
	n := e.Normalize()
	if n.Date.Hour() != 0 || n.Date.Minute() != 0 {
		t.Fatalf("date not truncated: %v", n.Date)
	}
	if n.PeriodKey != "Mar 2024" {
		t.Fatalf("period key = %q", n.PeriodKey)
	}
	if err := n.Validate(); err != nil {
		t.Fatalf("normalized entry should validate: %v", err)
	}
}

func TestEntryValidate(t *testing.T) {
	base := Entry{
		UserID:   "u1",
		Category: Maid,
		Date:     time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	base.PeriodKey = PeriodKeyFor(base.Date)

	cases := []struct {
		name   string
		mutate func(*Entry)
		ok     bool
	}{
		{"valid", func(e *Entry) {}, true},
		{"not occurred sentinel", func(e *Entry) { e.Amount = AmountNotOccurred }, true},
		{"empty user", func(e *Entry) { e.UserID = "" }, false},
		{"zero date", func(e *Entry) { e.Date = time.Time{} }, false},
		{"unnormalized date", func(e *Entry) { e.Date = e.Date.Add(time.Hour) }, false},
		{"wrong period key", func(e *Entry) { e.PeriodKey = "Apr 2024" }, false},
		{"other negative amount", func(e *Entry) { e.Amount = -2 }, false},
		{"negative quantity", func(e *Entry) { e.Quantity = -1 }, false},
	}
	for _, tc := range cases {
		e := base
		tc.mutate(&e)
		err := e.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: expected ok, got %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestNotOccurred(t *testing.T) {
	if (Entry{Amount: 0}).NotOccurred() {
		t.Fatalf("zero amount must mean occurred with no cost")
	}
	if !(Entry{Amount: AmountNotOccurred}).NotOccurred() {
		t.Fatalf("sentinel amount must mean not occurred")
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(c.String())
		if err != nil {
			t.Fatalf("ParseCategory(%q): %v", c.String(), err)
		}
		if got != c {
			t.Fatalf("round trip %v -> %v", c, got)
		}
	}
	// Lowercase names come from older local rows.
	if got, err := ParseCategory("milk"); err != nil || got != Milk {
		t.Fatalf("lowercase parse = %v, %v", got, err)
	}
	if _, err := ParseCategory("LAUNDRY"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestCategoryTraits(t *testing.T) {
	if !Milk.HasQuantity() || !Water.HasQuantity() {
		t.Fatalf("milk and water carry quantities")
	}
	if Maid.HasQuantity() {
		t.Fatalf("maid has no quantity")
	}
	if Milk.QuantityUnit() != "Liters" || Water.QuantityUnit() != "Cans" {
		t.Fatalf("unexpected quantity units")
	}
	if Gardener.CountLabel() != "Visits" || Cook.CountLabel() != "Days" {
		t.Fatalf("unexpected count labels")
	}
}
