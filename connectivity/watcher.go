package connectivity

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/domtailor/watch"
)

// Watch reloads the routing table whenever the database changes, polling
// PRAGMA data_version at the given interval. data_version increments on any
// write from another connection, so route edits made by other processes are
// picked up without triggers.
//
// Watch blocks until ctx is cancelled. Run it in a goroutine:
//
//	go router.Watch(ctx, db, 200*time.Millisecond)
func (r *Router) Watch(ctx context.Context, db *sql.DB, interval time.Duration) {
	// Routes must be live before the first change ever fires.
	if err := r.Reload(ctx, db); err != nil {
		r.logger.Error("connectivity: initial reload failed", "error", err)
	}

	w := watch.New(db, watch.Options{
		Interval: interval,
		Detector: watch.PragmaDataVersion,
		Logger:   r.logger,
	})
	w.OnChange(ctx, func() error { return r.Reload(ctx, db) })
}
