package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-analytics/internal/model"
)

// StatsSource is the store subset the collector reads.
type StatsSource interface {
	Stats(ctx context.Context) (*model.StoreStats, error)
	Ping(ctx context.Context) error
}

// Snapshot holds a point-in-time view of the invoice store.
type Snapshot struct {
	Store       model.StoreStats `json:"store"`
	StoreOK     bool             `json:"store_ok"`
	CollectedAt time.Time        `json:"collected_at"`
}

// Collector gathers store health and stats snapshots for the stats CLI
// command and the health endpoint.
type Collector struct {
	source StatsSource
}

// NewCollector creates a new stats collector.
func NewCollector(source StatsSource) *Collector {
	return &Collector{source: source}
}

// Collect gathers a snapshot. A ping failure is reported inside the
// snapshot, not as an error, so health checks stay answer-shaped.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{CollectedAt: time.Now().UTC()}

	snap.StoreOK = c.source.Ping(ctx) == nil
	if !snap.StoreOK {
		return snap, nil
	}

	stats, err := c.source.Stats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect stats")
	}
	snap.Store = *stats
	return snap, nil
}
