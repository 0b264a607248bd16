package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
)

// SyncReason tags what triggered a periodic sync. The engine performs the
// same full pull/push cycle regardless; the reason is logged for operators.
type SyncReason string

const (
	ReasonStartup       SyncReason = "STARTUP"
	ReasonMorning       SyncReason = "MORNING"
	ReasonEvening       SyncReason = "EVENING"
	ReasonMissingCheck  SyncReason = "MISSING_CHECK"
	ReasonWeeklySummary SyncReason = "WEEKLY_SUMMARY"
)

// Orchestrator decides when reconciliation runs and serializes concurrent
// invocations: at most one sync per period key at a time. A trigger that
// arrives while that period is already syncing is skipped, not queued;
// the next trigger is the retry mechanism.
type Orchestrator struct {
	rec *Reconciler

	// slots holds one atomic busy flag per period key. Compare-and-set,
	// not a mutex held across I/O.
	slots sync.Map // map[string]*atomic.Bool

	mu        sync.Mutex
	listeners []func(periodKey string)

	now func() time.Time
}

func NewOrchestrator(rec *Reconciler) *Orchestrator {
	return &Orchestrator{rec: rec, now: time.Now}
}

// OnSynced registers a listener invoked after every completed sync attempt
// for a period, success or partial failure alike. The UI collaborator uses
// this to refresh its read queries.
func (o *Orchestrator) OnSynced(fn func(periodKey string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *Orchestrator) slot(periodKey string) *atomic.Bool {
	v, _ := o.slots.LoadOrStore(periodKey, new(atomic.Bool))
	return v.(*atomic.Bool)
}

// SyncPeriod runs one full reconciliation cycle (pull/merge, then unsynced
// push) for the period. It reports false when the period was already
// syncing and the trigger was coalesced into a no-op. Errors are partial:
// listeners are notified either way and nothing is retried internally.
func (o *Orchestrator) SyncPeriod(ctx context.Context, periodKey string) (bool, error) {
	slot := o.slot(periodKey)
	if !slot.CompareAndSwap(false, true) {
		slog.DebugContext(ctx, "Sync already running for period, skipping",
			"period_key", periodKey)
		return false, nil
	}
	defer slot.Store(false)

	start := o.now()
	pullErr := o.rec.PullPeriod(ctx, periodKey)
	pushErr := o.rec.PushUnsynced(ctx)

	o.notify(periodKey)

	err := errors.Join(pullErr, pushErr)
	if err != nil {
		slog.WarnContext(ctx, "Sync completed with errors",
			"period_key", periodKey,
			"duration", o.now().Sub(start),
			"error", err)
	} else {
		slog.InfoContext(ctx, "Sync completed",
			"period_key", periodKey,
			"duration", o.now().Sub(start))
	}
	return true, err
}

// Syncing reports whether a sync for the period is currently in flight.
func (o *Orchestrator) Syncing(periodKey string) bool {
	return o.slot(periodKey).Load()
}

// RunPeriodicSync is the scheduler entry point: a full cycle over the
// current period, whatever the trigger reason.
func (o *Orchestrator) RunPeriodicSync(ctx context.Context, reason SyncReason) error {
	periodKey := currentPeriodKey(o.now())
	slog.InfoContext(ctx, "Periodic sync triggered",
		"reason", string(reason), "period_key", periodKey)
	_, err := o.SyncPeriod(ctx, periodKey)
	return err
}

// RunStartup performs the app-start sequence: the gated remote duplicate
// cleanup, then a sync of the current period.
func (o *Orchestrator) RunStartup(ctx context.Context) error {
	periodKey := currentPeriodKey(o.now())

	if err := o.rec.CleanupRemoteDuplicates(ctx, periodKey); err != nil {
		// Cleanup failure never blocks the sync itself.
		slog.WarnContext(ctx, "Remote duplicate cleanup failed, will retry next start",
			"period_key", periodKey, "error", err)
	}

	_, err := o.SyncPeriod(ctx, periodKey)
	return err
}

func (o *Orchestrator) notify(periodKey string) {
	o.mu.Lock()
	listeners := make([]func(string), len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(periodKey)
	}
}

func currentPeriodKey(now time.Time) string {
	return core.PeriodKeyFor(now)
}
