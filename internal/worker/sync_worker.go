// Package worker pushes locally unsynced entries to the remote store. It
// backs the gharelu-worker binary, driven by AMQP messages with a periodic
// sweep as the safety net for lost messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CSwithChetan123/GhareluDiary/internal/amqp"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote"
	"github.com/CSwithChetan123/GhareluDiary/internal/services"
	"github.com/CSwithChetan123/GhareluDiary/internal/storage"
)

// SyncWorker handles remote pushes of entries queued by the daemon.
type SyncWorker struct {
	store  *storage.SQLiteStore
	remote remote.Client
	rec    *services.Reconciler
}

func NewSyncWorker(store *storage.SQLiteStore, rc remote.Client, rec *services.Reconciler) *SyncWorker {
	return &SyncWorker{
		store:  store,
		remote: rc,
		rec:    rec,
	}
}

// HandleSyncMessage pushes a single queued entry to the remote store.
// A retryable remote failure is returned so the delivery requeues; an
// entry that vanished locally (deleted before the push ran) is dropped.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	entry, err := w.store.GetEntry(ctx, msg.ID)
	if err != nil {
		slog.WarnContext(ctx, "Queued entry no longer exists locally, dropping",
			"id", msg.ID, "error", err)
		return nil
	}

	if entry.Synced {
		slog.DebugContext(ctx, "Entry already synced, skipping", "id", msg.ID)
		return nil
	}

	remoteID, err := w.remote.Push(ctx, entry)
	if err != nil {
		return fmt.Errorf("push entry %d: %w", msg.ID, err)
	}

	if err := w.store.MarkSynced(ctx, msg.ID, remoteID); err != nil {
		// The push succeeded; the next pull reconciles by remote id.
		slog.ErrorContext(ctx, "Failed to mark entry synced",
			"id", msg.ID, "remote_id", remoteID, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Synced entry to remote store",
		"id", msg.ID, "remote_id", remoteID)
	return nil
}

// SweepUnsynced pushes any entries a lost message left behind.
func (w *SyncWorker) SweepUnsynced(ctx context.Context) error {
	return w.rec.PushUnsynced(ctx)
}

// StartupSyncCheck recovers entries left unsynced across worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup unsynced check")
	if err := w.rec.PushUnsynced(ctx); err != nil {
		return fmt.Errorf("startup unsynced sweep: %w", err)
	}
	return nil
}
