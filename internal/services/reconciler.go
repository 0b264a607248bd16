// Package services holds the reconciliation engine and the sync
// orchestrator that drives it.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
	"github.com/CSwithChetan123/GhareluDiary/internal/identity"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote"
	"github.com/CSwithChetan123/GhareluDiary/internal/storage"
)

// Publisher queues an entry for remote push out of process. When no
// publisher is configured the Reconciler pushes inline.
type Publisher interface {
	PublishEntrySync(ctx context.Context, id int64, userID string) error
}

// Reconciler maintains the one-entry-per-(user, category, day) invariant
// across the local and remote stores. The local store is authoritative for
// display, the remote store for durability.
type Reconciler struct {
	store     *storage.SQLiteStore
	remote    remote.Client
	id        identity.Provider
	publisher Publisher
}

// NewReconciler wires the engine. publisher may be nil; remote pushes then
// happen inline on the save/update paths.
func NewReconciler(store *storage.SQLiteStore, rc remote.Client, id identity.Provider, publisher Publisher) *Reconciler {
	return &Reconciler{
		store:     store,
		remote:    rc,
		id:        id,
		publisher: publisher,
	}
}

// BoundUserID returns the identity this engine is bound to, or "" when
// running unbound.
func (r *Reconciler) BoundUserID() string {
	if r.id.IsBound() {
		return r.id.UserID()
	}
	return ""
}

// SaveEntry persists a new entry locally, rejecting a second entry for the
// same (category, day), then best-effort pushes it to the remote store.
// Push failure never fails the save; the entry stays unsynced and the next
// sweep or pull heals it.
func (r *Reconciler) SaveEntry(ctx context.Context, e core.Entry) (int64, error) {
	if r.id.IsBound() {
		e.UserID = r.id.UserID()
	}
	e = e.Normalize()
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrInvalidEntry, err)
	}

	existing, err := r.store.EntriesByCategory(ctx, e.UserID, e.Category, e.PeriodKey)
	if err != nil {
		return 0, fmt.Errorf("check for duplicate: %w", err)
	}
	for _, ex := range existing {
		if core.SameDay(ex.Date, e.Date) {
			return 0, core.ErrDuplicateEntry
		}
	}

	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Synced = false

	localID, err := r.store.InsertEntry(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	e.ID = localID

	r.pushBestEffort(ctx, e)
	return localID, nil
}

// UpdateEntry replaces the mutable fields (quantity, amount, remark) of an
// existing entry and best-effort pushes the full row. UserID, category and
// date stay as first persisted.
func (r *Reconciler) UpdateEntry(ctx context.Context, e core.Entry) error {
	current, err := r.store.GetEntry(ctx, e.ID)
	if err != nil {
		return err
	}

	updated := current
	updated.Quantity = e.Quantity
	updated.Amount = e.Amount
	updated.Remark = e.Remark
	updated.Synced = false
	updated.UpdatedAt = time.Now()
	updated = updated.Normalize()

	if err := r.store.UpdateEntry(ctx, updated); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	r.pushBestEffort(ctx, updated)
	return nil
}

// DeleteEntry removes the entry locally. No remote tombstone is written;
// stale remote copies persist until cleanup or overwrite.
func (r *Reconciler) DeleteEntry(ctx context.Context, id int64) error {
	return r.store.DeleteEntry(ctx, id)
}

// pushBestEffort sends an entry remote-ward without ever surfacing failure.
// With a publisher the push is queued for the worker; otherwise it runs
// inline: push, then record the remote id locally.
func (r *Reconciler) pushBestEffort(ctx context.Context, e core.Entry) {
	if !r.id.IsBound() {
		return
	}

	if r.publisher != nil {
		if err := r.publisher.PublishEntrySync(ctx, e.ID, e.UserID); err != nil {
			slog.WarnContext(ctx, "Failed to queue entry for sync, staying unsynced",
				"id", e.ID, "error", err)
		}
		return
	}

	remoteID, err := r.remote.Push(ctx, e)
	if err != nil {
		slog.WarnContext(ctx, "Remote push failed, entry stays unsynced",
			"id", e.ID,
			"category", e.Category.String(),
			"retryable", remote.Retryable(err),
			"error", err)
		return
	}

	if err := r.store.MarkSynced(ctx, e.ID, remoteID); err != nil {
		// The push itself succeeded; the next pull matches on remote id.
		slog.ErrorContext(ctx, "Failed to record remote id after push",
			"id", e.ID, "remote_id", remoteID, "error", err)
	}
}

// dayKey is the fallback duplicate identity for entries that were never
// pushed on one of the two sides.
type dayKey struct {
	category core.Category
	dayMs    int64
}

func dayKeyOf(e core.Entry) dayKey {
	return dayKey{category: e.Category, dayMs: core.NormalizeDate(e.Date).UnixMilli()}
}

// PullPeriod merges the remote period into the local store. Remote entries
// with no local counterpart are inserted as synced rows; colliding entries
// are discarded unchanged (local wins). Each category is fetched and merged
// independently so one failure never aborts the rest.
func (r *Reconciler) PullPeriod(ctx context.Context, periodKey string) error {
	if !r.id.IsBound() {
		slog.DebugContext(ctx, "Skipping pull, no identity bound", "period_key", periodKey)
		return nil
	}
	userID := r.id.UserID()

	local, err := r.store.EntriesForPeriod(ctx, userID, periodKey)
	if err != nil {
		return fmt.Errorf("load local entries: %w", err)
	}

	byRemoteID := make(map[string]struct{}, len(local))
	byDay := make(map[dayKey]struct{}, len(local))
	for _, e := range local {
		if e.RemoteID != "" {
			byRemoteID[e.RemoteID] = struct{}{}
		}
		byDay[dayKeyOf(e)] = struct{}{}
	}

	var (
		mu      sync.Mutex
		pulled  []core.Entry
		catErrs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, cat := range core.Categories() {
		g.Go(func() error {
			entries, err := r.remote.ListCategory(gctx, userID, cat, periodKey)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Isolate and continue: other categories still merge.
				slog.WarnContext(gctx, "Remote fetch failed for category",
					"category", cat.String(), "period_key", periodKey, "error", err)
				catErrs = append(catErrs, fmt.Errorf("pull %s: %w", cat.String(), err))
				return nil
			}
			pulled = append(pulled, entries...)
			return nil
		})
	}
	_ = g.Wait()

	inserted := 0
	for _, re := range pulled {
		if r.isLocalDuplicate(re, byRemoteID, byDay) {
			continue
		}

		re.ID = 0
		re.UserID = userID
		re.Synced = true
		re = re.Normalize()
		if _, err := r.store.InsertEntry(ctx, re); err != nil {
			catErrs = append(catErrs, fmt.Errorf("insert pulled entry: %w", err))
			continue
		}
		inserted++

		// Guard against a second remote copy of the same day within this
		// pull batch.
		if re.RemoteID != "" {
			byRemoteID[re.RemoteID] = struct{}{}
		}
		byDay[dayKeyOf(re)] = struct{}{}
	}

	slog.InfoContext(ctx, "Pull merge completed",
		"period_key", periodKey,
		"remote_count", len(pulled),
		"inserted", inserted,
		"failed_categories", len(catErrs))

	return errors.Join(catErrs...)
}

// isLocalDuplicate applies the two-tier duplicate key: remote id equality
// when both sides carry one, otherwise (normalized date, category).
func (r *Reconciler) isLocalDuplicate(re core.Entry, byRemoteID map[string]struct{}, byDay map[dayKey]struct{}) bool {
	if re.RemoteID != "" {
		if _, ok := byRemoteID[re.RemoteID]; ok {
			return true
		}
	}
	_, ok := byDay[dayKeyOf(re)]
	return ok
}

// PushUnsynced pushes every locally unsynced entry for the bound user.
// Failures are logged per entry and returned joined; successfully pushed
// entries leave the unsynced set.
func (r *Reconciler) PushUnsynced(ctx context.Context) error {
	if !r.id.IsBound() {
		return nil
	}
	userID := r.id.UserID()

	entries, err := r.store.UnsyncedEntries(ctx, userID)
	if err != nil {
		return fmt.Errorf("load unsynced entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	var errs []error
	pushed := 0
	for _, e := range entries {
		remoteID, err := r.remote.Push(ctx, e)
		if err != nil {
			slog.WarnContext(ctx, "Unsynced push failed",
				"id", e.ID, "category", e.Category.String(), "error", err)
			errs = append(errs, fmt.Errorf("push entry %d: %w", e.ID, err))
			continue
		}
		if err := r.store.MarkSynced(ctx, e.ID, remoteID); err != nil {
			errs = append(errs, fmt.Errorf("mark entry %d synced: %w", e.ID, err))
			continue
		}
		pushed++
	}

	slog.InfoContext(ctx, "Unsynced sweep completed",
		"total", len(entries), "pushed", pushed, "failed", len(errs))

	return errors.Join(errs...)
}

// CleanupRemoteDuplicates repairs historical remote duplication for the
// given period: per category, remote documents are grouped by normalized
// day and all but the earliest-created are deleted. The pass is idempotent
// and gated by a persisted flag so it normally runs once.
func (r *Reconciler) CleanupRemoteDuplicates(ctx context.Context, periodKey string) error {
	if !r.id.IsBound() {
		return nil
	}

	done, err := r.store.Flag(ctx, storage.FlagRemoteDuplicatesCleaned)
	if err != nil {
		return fmt.Errorf("read cleanup flag: %w", err)
	}
	if done {
		return nil
	}
	userID := r.id.UserID()

	var (
		mu      sync.Mutex
		errs    []error
		deleted int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, cat := range core.Categories() {
		g.Go(func() error {
			n, err := r.cleanupCategory(gctx, userID, cat, periodKey)
			mu.Lock()
			defer mu.Unlock()
			deleted += n
			if err != nil {
				errs = append(errs, fmt.Errorf("cleanup %s: %w", cat.String(), err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		// Leave the flag unset; the next startup retries the whole pass,
		// which is safe because keep-earliest is deterministic.
		return errors.Join(errs...)
	}

	if err := r.store.SetFlag(ctx, storage.FlagRemoteDuplicatesCleaned, true); err != nil {
		return fmt.Errorf("persist cleanup flag: %w", err)
	}

	slog.InfoContext(ctx, "Remote duplicate cleanup completed",
		"period_key", periodKey, "deleted", deleted)
	return nil
}

func (r *Reconciler) cleanupCategory(ctx context.Context, userID string, cat core.Category, periodKey string) (int, error) {
	entries, err := r.remote.ListCategory(ctx, userID, cat, periodKey)
	if err != nil {
		return 0, err
	}

	groups := make(map[int64][]core.Entry)
	for _, e := range entries {
		day := core.NormalizeDate(e.Date).UnixMilli()
		groups[day] = append(groups[day], e)
	}

	deleted := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		// Keep the earliest-created document; remote id breaks ties so
		// repeated runs always pick the same survivor.
		sort.Slice(group, func(i, j int) bool {
			if group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].RemoteID < group[j].RemoteID
			}
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		for _, dup := range group[1:] {
			if err := r.remote.Delete(ctx, userID, dup.RemoteID); err != nil {
				return deleted, fmt.Errorf("delete duplicate %s: %w", dup.RemoteID, err)
			}
			deleted++
		}
	}
	return deleted, nil
}
