package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-premium-api/internal/pkg/clock"
)

// Janitor periodically sweeps expired codes and markers. Expiry is already
// enforced on every read; sweeping only bounds memory.
type Janitor struct {
	Codes    *CodeStore
	Markers  *MarkerStore
	Clock    clock.Clock
	Interval time.Duration
}

// Sweep runs a single pass and returns the number of records removed.
func (j *Janitor) Sweep() int {
	now := j.Clock.Now()
	n := 0
	if j.Codes != nil {
		n += j.Codes.PurgeExpired(now)
	}
	if j.Markers != nil {
		n += j.Markers.PurgeExpired(now)
	}
	return n
}

// Run sweeps every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	t := time.NewTicker(j.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := j.Sweep(); n > 0 {
				slog.Debug("janitor removed expired records", "count", n)
			}
		}
	}
}
