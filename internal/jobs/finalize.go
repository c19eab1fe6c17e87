package jobs

import (
	"context"
	"log"
	"time"
)

// Finalizer is the slice of the event service the sweep needs.
type Finalizer interface {
	FinalizeDueEvents(ctx context.Context, now time.Time) (int64, error)
}

// StartFinalizeJob runs the event finalization sweep on a fixed interval
// until ctx is canceled. Errors are logged and retried on the next tick;
// the listing read path runs the same sweep, so the two stay consistent
// by construction.
func StartFinalizeJob(ctx context.Context, finalizer Finalizer, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		// Run once immediately so a restart does not leave overdue
		// events unfinalized for a full interval.
		sweep(ctx, finalizer)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, finalizer)
			}
		}
	}()
}

func sweep(ctx context.Context, finalizer Finalizer) {
	tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := finalizer.FinalizeDueEvents(tickCtx, time.Now()); err != nil {
		log.Printf("finalize sweep error: %v", err)
	}
}
