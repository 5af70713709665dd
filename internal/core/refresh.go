package core

import (
	"context"
	"time"

	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/metrics"
)

// Refresh pulls the node's listing and replaces the store's files with it.
// On any failure the current listing is kept, the failure is published as a
// RefreshFailedEvent and returned.
//
// Concurrent refreshes are independent: whichever response resolves last
// wins, even if its request was issued first.
func (e *Engine) Refresh(ctx context.Context) error {
	start := e.clock.Now()
	files, err := e.snapshots.ListFiles(ctx)
	elapsed := e.clock.Since(start)
	metrics.RecordRefresh(err == nil, elapsed)

	if err != nil {
		e.logger.Warn().Err(err).Msg("Listing refresh failed, keeping current listing")
		e.publish(&events.RefreshFailedEvent{
			BaseEvent: events.NewBase(events.EventRefreshFailed),
			Error:     err,
		})
		return err
	}

	e.store.SetFiles(files)
	metrics.SetFilesKnown(len(files))
	e.logger.Debug().Int("files", len(files)).Dur("took", elapsed).Msg("Listing refreshed")
	return nil
}

// TriggerRefresh starts a Refresh in the background and returns at once.
// The refresh is bound to the engine's lifetime, not to any caller.
func (e *Engine) TriggerRefresh() {
	if e.ctx.Err() != nil {
		return
	}
	e.pending.add()
	go func() {
		defer e.pending.done()
		_ = e.Refresh(e.ctx)
	}()
}

// ScheduleRefresh runs a refresh after delay on the engine's clock. Close
// drops refreshes that have not started yet.
func (e *Engine) ScheduleRefresh(delay time.Duration) {
	if e.ctx.Err() != nil {
		return
	}
	e.pending.add()
	go func() {
		defer e.pending.done()
		select {
		case <-e.clock.After(delay):
			_ = e.Refresh(e.ctx)
		case <-e.ctx.Done():
		}
	}()
}

// Pending reports how many refreshes are running or scheduled.
func (e *Engine) Pending() int {
	return e.pending.count()
}
