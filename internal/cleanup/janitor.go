// Package cleanup reclaims result files and job records once their
// retention window has elapsed. It runs off the request path, triggered by
// job age only.
package cleanup

import (
	"context"
	"log"
	"time"

	"github.com/mediagrab/orchestrator/internal/job"
	"github.com/mediagrab/orchestrator/internal/storage"
)

type Janitor struct {
	store     job.JobStore
	files     *storage.Store
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewJanitor(store job.JobStore, files *storage.Store, retention, interval time.Duration) *Janitor {
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		store:     store,
		files:     files,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Start sweeps periodically until the context is cancelled.
func (g *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := g.Sweep()
			if removed > 0 {
				log.Printf("cleanup: removed %d expired jobs", removed)
			}
		}
	}
}

// Sweep deletes every terminal job whose terminal state is older than the
// retention window, along with its result files. Active jobs are never
// touched.
func (g *Janitor) Sweep() int {
	cutoff := g.now().UTC().Add(-g.retention)

	jobs, total := g.store.List(0, 0, "")
	if total > len(jobs) {
		jobs, _ = g.store.List(total, 0, "")
	}

	removed := 0
	for _, j := range jobs {
		if !j.Status.Terminal() || j.CompletedAt == nil || j.CompletedAt.After(cutoff) {
			continue
		}
		if err := g.files.Remove(j.ID); err != nil {
			log.Printf("cleanup: remove files for job %s: %v", j.ID, err)
			continue
		}
		if err := g.store.Delete(j.ID); err != nil {
			log.Printf("cleanup: delete job %s: %v", j.ID, err)
			continue
		}
		removed++
	}
	return removed
}
