package core

import (
	"errors"
	"time"
)

// PeriodLayout is the Go time layout for period keys, e.g. "Mar 2024".
const PeriodLayout = "Jan 2006"

// AmountNotOccurred is the sentinel amount marking a day the service
// explicitly did not come. Distinct from amount 0, which means the service
// came at no cost.
const AmountNotOccurred = -1

var (
	ErrDuplicateEntry = errors.New("entry already exists for this day")
	ErrNotFound       = errors.New("entry not found")
	ErrInvalidEntry   = errors.New("invalid entry")
	ErrEmptyUserID    = errors.New("empty user id")
)

// Entry is one user's record for one category on one calendar day.
type Entry struct {
	// ID is the local store identifier; 0 means not yet persisted.
	ID     int64
	UserID string

	Category Category

	// Date is normalized to midnight local time; the triple
	// (UserID, Category, Date) identifies the logical entry.
	Date time.Time

	// PeriodKey is the month bucket of Date, the primary query partition.
	PeriodKey string

	Quantity float64
	Amount   float64
	Remark   string

	// RemoteID is the remote document id; empty means never pushed.
	RemoteID string
	Synced   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile is the one-row-per-user profile record.
type UserProfile struct {
	UserID    string
	Name      string
	Email     string
	CreatedAt time.Time
}

// NormalizeDate truncates t to midnight in its own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// PeriodKeyFor returns the month bucket key of t, e.g. "Mar 2024".
func PeriodKeyFor(t time.Time) string {
	return t.Format(PeriodLayout)
}

// ParsePeriodKey validates and normalizes a period key string.
func ParsePeriodKey(s string) (string, error) {
	t, err := time.Parse(PeriodLayout, s)
	if err != nil {
		return "", errors.New("invalid period key, want e.g. \"Mar 2024\"")
	}
	return t.Format(PeriodLayout), nil
}

// SameDay reports whether a and b fall on the same normalized calendar day.
func SameDay(a, b time.Time) bool {
	return NormalizeDate(a).Equal(NormalizeDate(b))
}

// NotOccurred reports whether the entry is marked "service did not come".
func (e Entry) NotOccurred() bool {
	return e.Amount < 0
}

// Normalize returns a copy with the date truncated to midnight and the
// period key derived from it.
func (e Entry) Normalize() Entry {
	e.Date = NormalizeDate(e.Date)
	e.PeriodKey = PeriodKeyFor(e.Date)
	return e
}

// Validate checks the invariants every persisted entry must satisfy.
func (e Entry) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	if e.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if !e.Date.Equal(NormalizeDate(e.Date)) {
		return errors.New("date not normalized to midnight")
	}
	if e.PeriodKey != PeriodKeyFor(e.Date) {
		return errors.New("period key does not match date")
	}
	if e.Amount < 0 && e.Amount != AmountNotOccurred {
		return errors.New("negative amount other than the not-occurred sentinel")
	}
	if e.Quantity < 0 {
		return errors.New("negative quantity")
	}
	return nil
}
