package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
	"github.com/CSwithChetan123/GhareluDiary/internal/identity"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote"
)

func entryFor(day int, cat core.Category) core.Entry {
	return core.Entry{
		UserID:    "user-1",
		Category:  cat,
		Date:      time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
		PeriodKey: "Mar 2024",
		Quantity:  2,
		Amount:    120,
	}
}

func TestStore_RequiresIdentity(t *testing.T) {
	s := New(identity.None{})
	ctx := context.Background()

	if _, err := s.Push(ctx, entryFor(5, core.Milk)); !errors.Is(err, remote.ErrNotAuthenticated) {
		t.Errorf("Push() unbound error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := s.Pull(ctx, "user-1", "Mar 2024"); !errors.Is(err, remote.ErrNotAuthenticated) {
		t.Errorf("Pull() unbound error = %v, want ErrNotAuthenticated", err)
	}
	if err := s.Delete(ctx, "user-1", "x"); !errors.Is(err, remote.ErrNotAuthenticated) {
		t.Errorf("Delete() unbound error = %v, want ErrNotAuthenticated", err)
	}
}

func TestStore_PushPullRoundTrip(t *testing.T) {
	s := New(identity.Static{ID: "user-1"})
	ctx := context.Background()

	remoteID, err := s.Push(ctx, entryFor(5, core.Milk))
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if remoteID == "" {
		t.Fatal("Push() returned empty remote id")
	}

	entries, err := s.Pull(ctx, "user-1", "Mar 2024")
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if len(entries) != 1 || entries[0].RemoteID != remoteID {
		t.Errorf("Pull() = %v, want the pushed entry", entries)
	}

	// Pushing with the same remote id overwrites, not duplicates.
	update := entryFor(5, core.Milk)
	update.RemoteID = remoteID
	update.Amount = 150
	if _, err := s.Push(ctx, update); err != nil {
		t.Fatalf("Push(update) error = %v", err)
	}
	if s.Len("user-1") != 1 {
		t.Errorf("Len() = %d after overwrite, want 1", s.Len("user-1"))
	}
}

func TestStore_ListCategoryFilters(t *testing.T) {
	s := New(identity.Static{ID: "user-1"})
	ctx := context.Background()

	s.Seed(entryFor(5, core.Milk))
	s.Seed(entryFor(6, core.Water))

	entries, err := s.ListCategory(ctx, "user-1", core.Water, "Mar 2024")
	if err != nil {
		t.Fatalf("ListCategory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Category != core.Water {
		t.Errorf("ListCategory() = %v, want only water", entries)
	}
}

func TestStore_MalformedDocumentsSkipped(t *testing.T) {
	s := New(identity.Static{ID: "user-1"})
	ctx := context.Background()

	s.Seed(entryFor(5, core.Milk))
	s.SeedMalformed("user-1")

	entries, err := s.Pull(ctx, "user-1", "Mar 2024")
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Pull() = %d entries, want 1 (malformed skipped)", len(entries))
	}
	if s.Len("user-1") != 2 {
		t.Errorf("Len() = %d, want 2 (malformed still stored)", s.Len("user-1"))
	}
}

func TestStore_ProjectionWrittenOnPush(t *testing.T) {
	s := New(identity.Static{ID: "user-1"})

	remoteID, err := s.Push(context.Background(), entryFor(5, core.Milk))
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	proj, ok := s.Projection("user-1", remoteID)
	if !ok {
		t.Fatal("Projection() not found for pushed document")
	}
	if proj.Status != "YES (Paid)" {
		t.Errorf("projection status = %q, want %q", proj.Status, "YES (Paid)")
	}
	if proj.FormattedDate != "05 Mar 2024" {
		t.Errorf("projection date = %q, want %q", proj.FormattedDate, "05 Mar 2024")
	}
}
