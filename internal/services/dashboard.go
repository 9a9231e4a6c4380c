package services

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"walletlens/internal/cache"
	"walletlens/internal/core"
	"walletlens/internal/log"
)

// Dashboard caches the current month overview. Readers get an immutable
// snapshot; concurrent refreshes of the same month share one computation.
type Dashboard struct {
	agg   *Aggregator
	ttl   time.Duration
	now   func() time.Time
	snap  cache.Snapshot[core.MonthOverview]
	last  cache.Snapshot[core.MonthOverview]
	group singleflight.Group
}

func NewDashboard(agg *Aggregator, ttl time.Duration) *Dashboard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Dashboard{agg: agg, ttl: ttl, now: agg.now}
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// Overview returns the cached overview when it is fresh, otherwise refreshes
func (d *Dashboard) Overview(ctx context.Context) core.MonthOverview {
	now := d.now()
	key := monthKey(now)
	if ov, storedAt, k, ok := d.snap.Load(); ok && k == key && time.Since(storedAt) < d.ttl {
		return ov
	}
	return d.Refresh(ctx)
}

// Refresh recomputes the overview. When a store read fails the last good
// overview of the same month is kept. A result whose reads started before
// an Invalidate is returned to its callers but not cached.
func (d *Dashboard) Refresh(ctx context.Context) core.MonthOverview {
	now := d.now()
	key := monthKey(now)
	gen := d.snap.Generation()
	// Callers arriving after an Invalidate must not join a flight whose
	// reads predate it.
	flight := key + "#" + strconv.FormatUint(gen, 10)
	v, _, _ := d.group.Do(flight, func() (any, error) {
		ov, err := d.agg.monthOverview(ctx, now)
		if err != nil {
			d.agg.logger.ErrorContext(ctx, "Dashboard refresh failed", "month", key, log.FieldError, err)
			if good, ok := d.last.LoadKey(key); ok {
				return good, nil
			}
			return ov, nil
		}
		if !d.snap.StoreIf(gen, key, ov) {
			d.agg.logger.DebugContext(ctx, "Dashboard refresh raced an invalidation, not cached", "month", key)
		}
		d.last.Store(key, ov)
		return ov, nil
	})
	return v.(core.MonthOverview)
}

// Invalidate drops the cached overview; the next read recomputes it
func (d *Dashboard) Invalidate() {
	d.snap.Invalidate()
}

// TransactionChanged invalidates on every transaction mutation
func (d *Dashboard) TransactionChanged(context.Context, TransactionChange) error {
	d.Invalidate()
	return nil
}

// ReminderChanged invalidates: the overview lists upcoming reminders
func (d *Dashboard) ReminderChanged(context.Context, core.Reminder) error {
	d.Invalidate()
	return nil
}

func (d *Dashboard) ReminderRemoved(context.Context, int64) error {
	d.Invalidate()
	return nil
}
