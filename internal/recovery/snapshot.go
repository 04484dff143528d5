package recovery

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// recentRing keeps the last few reports per service for snapshot building.
type recentRing struct {
	mu        sync.Mutex
	limit     int
	byService map[string][]*ErrorReport
}

func newRecentRing(limit int) *recentRing {
	if limit <= 0 {
		limit = 20
	}
	return &recentRing{
		limit:     limit,
		byService: make(map[string][]*ErrorReport),
	}
}

func (r *recentRing) add(report *ErrorReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reports := append(r.byService[report.ServiceID], report)
	if len(reports) > r.limit {
		// Copy down instead of reslicing so the old array is released.
		copy(reports, reports[len(reports)-r.limit:])
		reports = reports[:r.limit]
	}
	r.byService[report.ServiceID] = reports
}

func (r *recentRing) recent(serviceID string) []*ErrorReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	reports := r.byService[serviceID]
	out := make([]*ErrorReport, len(reports))
	copy(out, reports)
	return out
}

// Collector builds a fresh SystemSnapshot on every threshold crossing.
// Snapshots are never cached; a stale snapshot would invalidate the advisory
// decision.
type Collector struct {
	source   SnapshotSource
	recents  *recentRing
	inFlight func() int
}

// NewCollector creates a snapshot collector. source may be nil; inFlight
// reports the number of remediation sequences currently running.
func NewCollector(source SnapshotSource, recentLimit int, inFlight func() int) *Collector {
	if inFlight == nil {
		inFlight = func() int { return 0 }
	}
	return &Collector{
		source:   source,
		recents:  newRecentRing(recentLimit),
		inFlight: inFlight,
	}
}

// Observe records a report for inclusion in later snapshots of its service.
func (c *Collector) Observe(report *ErrorReport) {
	c.recents.add(report)
}

// Collect assembles a point-in-time snapshot for serviceID.
func (c *Collector) Collect(ctx context.Context, serviceID string) *SystemSnapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := &SystemSnapshot{
		ServiceID:    serviceID,
		TakenAt:      time.Now().UTC(),
		RecentErrors: c.recents.recent(serviceID),
		Load: LoadMetrics{
			Goroutines:           runtime.NumGoroutine(),
			HeapAllocBytes:       mem.HeapAlloc,
			InFlightRemediations: c.inFlight(),
		},
	}

	if c.source != nil {
		snap.ConnectedServices = c.source.ConnectedServices(ctx, serviceID)
		snap.CredentialStatus = c.source.CredentialStatus(ctx, serviceID)
	}

	return snap
}
