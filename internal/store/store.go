// Package store persists scored parts and run logs to PostgreSQL or SQLite.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/datadojo/partrank/internal/model"
)

// ErrReadOnly is returned by write operations on a store opened read-only.
var ErrReadOnly = eris.New("store: opened read-only")

// ScoreFilter specifies criteria for listing scored parts.
type ScoreFilter struct {
	BatchID     string  `json:"batch_id,omitempty"`
	Category    string  `json:"category,omitempty"`
	MinPriority float64 `json:"min_priority,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	Offset      int     `json:"offset,omitempty"`
}

// ScoreStats summarizes the persisted scores for health monitoring.
type ScoreStats struct {
	Parts        int       `json:"parts"`
	AvgPriority  float64   `json:"avg_priority"`
	ZeroCount    int       `json:"zero_count"`
	LastScoredAt time.Time `json:"last_scored_at"`
}

// Store defines the persistence interface for scoring results.
type Store interface {
	// Scores
	SaveScores(ctx context.Context, parts []model.ScoredPart) error
	GetScore(ctx context.Context, pn string) (*model.ScoredPart, error)
	ListScores(ctx context.Context, filter ScoreFilter) ([]model.ScoredPart, error)

	// Run log
	LogRun(ctx context.Context, run model.RunLog) error
	ListRuns(ctx context.Context, limit int) ([]model.RunLog, error)

	// Health
	Stats(ctx context.Context) (*ScoreStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
