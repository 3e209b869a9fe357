package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/datadojo/partrank/internal/store"
)

// MetricsSnapshot holds a point-in-time view of score health.
type MetricsSnapshot struct {
	// Score table metrics.
	Parts       int     `json:"parts"`
	AvgPriority float64 `json:"avg_priority"`
	ZeroCount   int     `json:"zero_count"`
	ZeroRate    float64 `json:"zero_rate"`

	// Freshness.
	LastScoredAt time.Time `json:"last_scored_at"`
	StaleHours   float64   `json:"stale_hours"`

	// Recent run metrics.
	RecentRuns       int     `json:"recent_runs"`
	LastRunParts     int     `json:"last_run_parts"`
	LastRunBoostRate float64 `json:"last_run_boost_rate"`

	CollectedAt time.Time `json:"collected_at"`
}

// runLookback is how many recent runs Collect inspects.
const runLookback = 20

// Collector gathers metrics from the score store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of score health.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		CollectedAt: time.Now().UTC(),
	}

	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: score stats")
	}

	snap.Parts = stats.Parts
	snap.AvgPriority = stats.AvgPriority
	snap.ZeroCount = stats.ZeroCount
	if stats.Parts > 0 {
		snap.ZeroRate = float64(stats.ZeroCount) / float64(stats.Parts)
	}
	snap.LastScoredAt = stats.LastScoredAt
	if !stats.LastScoredAt.IsZero() {
		snap.StaleHours = snap.CollectedAt.Sub(stats.LastScoredAt).Hours()
	}

	runs, err := c.store.ListRuns(ctx, runLookback)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RecentRuns = len(runs)
	if len(runs) > 0 {
		last := runs[0]
		snap.LastRunParts = last.PartCount
		if last.PartCount > 0 {
			snap.LastRunBoostRate = float64(last.BoostedCount) / float64(last.PartCount)
		}
	}

	return snap, nil
}
