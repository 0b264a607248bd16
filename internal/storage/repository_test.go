package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
)

const testUser = "user-1"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testEntry(cat core.Category, day int, amount float64) core.Entry {
	e := core.Entry{
		UserID:   testUser,
		Category: cat,
		Date:     time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
		Quantity: 2,
		Amount:   amount,
	}
	return e.Normalize()
}

func mustInsert(t *testing.T, store *SQLiteStore, e core.Entry) int64 {
	t.Helper()
	id, err := store.InsertEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("InsertEntry() error = %v", err)
	}
	return id
}

func TestInsertAndGetEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry(core.Milk, 5, 120)
	e.Remark = "two packets"
	id := mustInsert(t, store, e)

	got, err := store.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.ID != id {
		t.Errorf("GetEntry() id = %d, want %d", got.ID, id)
	}
	if got.Category != core.Milk || got.Amount != 120 || got.Quantity != 2 {
		t.Errorf("GetEntry() = %+v, fields do not round trip", got)
	}
	if got.Remark != "two packets" {
		t.Errorf("GetEntry() remark = %q, want %q", got.Remark, "two packets")
	}
	if got.PeriodKey != "Mar 2024" {
		t.Errorf("GetEntry() period key = %q, want %q", got.PeriodKey, "Mar 2024")
	}
	if !core.SameDay(got.Date, e.Date) {
		t.Errorf("GetEntry() date = %v, want same day as %v", got.Date, e.Date)
	}
	if got.Synced {
		t.Error("GetEntry() synced = true for a fresh insert")
	}
}

func TestInsertEntry_RejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	invalid := testEntry(core.Milk, 5, 120)
	invalid.UserID = ""

	if _, err := store.InsertEntry(context.Background(), invalid); !errors.Is(err, core.ErrInvalidEntry) {
		t.Errorf("InsertEntry() error = %v, want ErrInvalidEntry", err)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetEntry(context.Background(), 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetEntry() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := mustInsert(t, store, testEntry(core.Cook, 10, 500))

	e, _ := store.GetEntry(ctx, id)
	e.Amount = 550
	e.Remark = "festival bonus"
	if err := store.UpdateEntry(ctx, e); err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}

	got, _ := store.GetEntry(ctx, id)
	if got.Amount != 550 || got.Remark != "festival bonus" {
		t.Errorf("UpdateEntry() result = (%v, %q), want (550, festival bonus)", got.Amount, got.Remark)
	}

	missing := e
	missing.ID = 9999
	if err := store.UpdateEntry(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateEntry(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := mustInsert(t, store, testEntry(core.Driver, 12, 800))
	if err := store.DeleteEntry(ctx, id); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if _, err := store.GetEntry(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetEntry() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteEntry(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteEntry() twice error = %v, want ErrNotFound", err)
	}
}

func TestEntriesForPeriod_ScopedAndOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, store, testEntry(core.Milk, 3, 60))
	mustInsert(t, store, testEntry(core.Milk, 8, 60))
	mustInsert(t, store, testEntry(core.Water, 5, 25))

	// Another period and another user must not leak in.
	other := testEntry(core.Milk, 3, 60)
	other.Date = time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)
	mustInsert(t, store, other.Normalize())
	foreign := testEntry(core.Milk, 9, 60)
	foreign.UserID = "user-2"
	mustInsert(t, store, foreign)

	entries, err := store.EntriesForPeriod(ctx, testUser, "Mar 2024")
	if err != nil {
		t.Fatalf("EntriesForPeriod() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("EntriesForPeriod() count = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Date.After(entries[i-1].Date) {
			t.Errorf("EntriesForPeriod() not ordered newest first: %v before %v", entries[i-1].Date, entries[i].Date)
		}
	}
}

func TestEntriesByCategory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, store, testEntry(core.Milk, 3, 60))
	mustInsert(t, store, testEntry(core.Water, 5, 25))

	entries, err := store.EntriesByCategory(ctx, testUser, core.Water, "Mar 2024")
	if err != nil {
		t.Fatalf("EntriesByCategory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Category != core.Water {
		t.Errorf("EntriesByCategory() = %v, want the single water entry", entries)
	}
}

func TestUnsyncedAndMarkSynced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1 := mustInsert(t, store, testEntry(core.Milk, 3, 60))
	id2 := mustInsert(t, store, testEntry(core.Milk, 4, 60))

	unsynced, err := store.UnsyncedEntries(ctx, testUser)
	if err != nil {
		t.Fatalf("UnsyncedEntries() error = %v", err)
	}
	if len(unsynced) != 2 {
		t.Fatalf("UnsyncedEntries() count = %d, want 2", len(unsynced))
	}
	// Oldest first so the sweep replays in write order.
	if unsynced[0].ID != id1 {
		t.Errorf("UnsyncedEntries() first id = %d, want %d", unsynced[0].ID, id1)
	}

	if err := store.MarkSynced(ctx, id1, "remote-abc"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	got, _ := store.GetEntry(ctx, id1)
	if !got.Synced || got.RemoteID != "remote-abc" {
		t.Errorf("MarkSynced() result = (synced=%v, remote_id=%q)", got.Synced, got.RemoteID)
	}

	unsynced, _ = store.UnsyncedEntries(ctx, testUser)
	if len(unsynced) != 1 || unsynced[0].ID != id2 {
		t.Errorf("UnsyncedEntries() after mark = %v, want only entry %d", unsynced, id2)
	}

	if err := store.MarkSynced(ctx, 9999, "x"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("MarkSynced(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMonthlySummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, store, testEntry(core.Milk, 3, 60))
	mustInsert(t, store, testEntry(core.Milk, 4, 70))
	missed := testEntry(core.Milk, 5, core.AmountNotOccurred)
	missed.Quantity = 0
	mustInsert(t, store, missed)
	mustInsert(t, store, testEntry(core.Maid, 10, 1500))

	summary, err := store.MonthlySummary(ctx, testUser, "Mar 2024")
	if err != nil {
		t.Fatalf("MonthlySummary() error = %v", err)
	}

	milk, ok := summary.ByCategory[core.Milk]
	if !ok {
		t.Fatal("MonthlySummary() missing milk stats")
	}
	if milk.TotalAmount != 130 {
		t.Errorf("milk total = %v, want 130 (sentinel excluded)", milk.TotalAmount)
	}
	if milk.EntryCount != 2 || milk.MissedCount != 1 {
		t.Errorf("milk counts = (%d, %d), want (2, 1)", milk.EntryCount, milk.MissedCount)
	}
	if milk.TotalQuantity != 4 {
		t.Errorf("milk quantity = %v, want 4", milk.TotalQuantity)
	}
	wantLast := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	if !core.SameDay(milk.LastEntryDate, wantLast) {
		t.Errorf("milk last entry = %v, want %v", milk.LastEntryDate, wantLast)
	}

	if total := summary.Total(); total != 1630 {
		t.Errorf("summary total = %v, want 1630", total)
	}
}

func TestAllPeriodKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, store, testEntry(core.Milk, 3, 60))
	apr := testEntry(core.Milk, 3, 60)
	apr.Date = time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)
	mustInsert(t, store, apr.Normalize())

	keys, err := store.AllPeriodKeys(ctx, testUser)
	if err != nil {
		t.Fatalf("AllPeriodKeys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "Apr 2024" || keys[1] != "Mar 2024" {
		t.Errorf("AllPeriodKeys() = %v, want [Apr 2024 Mar 2024]", keys)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Profile(ctx, testUser); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Profile(missing) error = %v, want ErrNotFound", err)
	}

	p := core.UserProfile{UserID: testUser, Name: "Chetan", Email: "chetan@example.com"}
	if err := store.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	got, err := store.Profile(ctx, testUser)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if got.Name != "Chetan" || got.Email != "chetan@example.com" {
		t.Errorf("Profile() = %+v", got)
	}

	// Upsert keeps the row unique per user.
	p.Name = "Chetan K"
	if err := store.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile() upsert error = %v", err)
	}
	got, _ = store.Profile(ctx, testUser)
	if got.Name != "Chetan K" {
		t.Errorf("Profile() after upsert name = %q, want %q", got.Name, "Chetan K")
	}

	if err := store.SaveProfile(ctx, core.UserProfile{}); !errors.Is(err, core.ErrEmptyUserID) {
		t.Errorf("SaveProfile(empty) error = %v, want ErrEmptyUserID", err)
	}
}

func TestFlags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	done, err := store.Flag(ctx, FlagRemoteDuplicatesCleaned)
	if err != nil {
		t.Fatalf("Flag() error = %v", err)
	}
	if done {
		t.Error("Flag() = true for an unset flag, want false")
	}

	if err := store.SetFlag(ctx, FlagRemoteDuplicatesCleaned, true); err != nil {
		t.Fatalf("SetFlag() error = %v", err)
	}
	done, _ = store.Flag(ctx, FlagRemoteDuplicatesCleaned)
	if !done {
		t.Error("Flag() = false after SetFlag(true)")
	}

	if err := store.SetFlag(ctx, FlagRemoteDuplicatesCleaned, false); err != nil {
		t.Fatalf("SetFlag(false) error = %v", err)
	}
	done, _ = store.Flag(ctx, FlagRemoteDuplicatesCleaned)
	if done {
		t.Error("Flag() = true after SetFlag(false)")
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, store, testEntry(core.Milk, 3, 60))
	keep := testEntry(core.Milk, 3, 60)
	keep.UserID = "user-2"
	keepID := mustInsert(t, store, keep)
	_ = store.SaveProfile(ctx, core.UserProfile{UserID: testUser, Name: "Chetan"})

	if err := store.DeleteAllForUser(ctx, testUser); err != nil {
		t.Fatalf("DeleteAllForUser() error = %v", err)
	}

	entries, _ := store.EntriesForPeriod(ctx, testUser, "Mar 2024")
	if len(entries) != 0 {
		t.Errorf("entries after wipe = %d, want 0", len(entries))
	}
	if _, err := store.Profile(ctx, testUser); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Profile() after wipe error = %v, want ErrNotFound", err)
	}
	// Other users' data is untouched.
	if _, err := store.GetEntry(ctx, keepID); err != nil {
		t.Errorf("other user's entry lost: %v", err)
	}
}

func TestWatch_NotifiesOnWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch, cancel := store.Watch(testUser, "Mar 2024")
	defer cancel()

	id := mustInsert(t, store, testEntry(core.Milk, 3, 60))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after insert")
	}

	// Coalescing: two quick writes leave at most one pending signal.
	mustInsert(t, store, testEntry(core.Milk, 4, 60))
	_ = store.MarkSynced(ctx, id, "remote-abc")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after further writes")
	}
	select {
	case <-ch:
		t.Fatal("notifications not coalesced")
	default:
	}

	// Writes for another period do not signal this watcher.
	apr := testEntry(core.Milk, 3, 60)
	apr.Date = time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)
	mustInsert(t, store, apr.Normalize())
	select {
	case <-ch:
		t.Fatal("watcher notified for an unrelated period")
	default:
	}
}

func TestWatch_CancelStopsNotifications(t *testing.T) {
	store := newTestStore(t)

	ch, cancel := store.Watch(testUser, "Mar 2024")
	cancel()

	mustInsert(t, store, testEntry(core.Milk, 3, 60))
	select {
	case <-ch:
		t.Fatal("cancelled watcher still notified")
	default:
	}
}
