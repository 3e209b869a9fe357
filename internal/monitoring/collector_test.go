package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datadojo/partrank/internal/model"
	"github.com/datadojo/partrank/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	stats    *store.ScoreStats
	runs     []model.RunLog
	statsErr error
	runsErr  error
}

func (m *mockStore) Stats(_ context.Context) (*store.ScoreStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	if m.stats == nil {
		return &store.ScoreStats{}, nil
	}
	return m.stats, nil
}

func (m *mockStore) ListRuns(_ context.Context, limit int) ([]model.RunLog, error) {
	if m.runsErr != nil {
		return nil, m.runsErr
	}
	if len(m.runs) > limit {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

// Unused store methods, satisfy the interface.
func (m *mockStore) SaveScores(context.Context, []model.ScoredPart) error { return nil }
func (m *mockStore) GetScore(context.Context, string) (*model.ScoredPart, error) {
	return nil, nil
}
func (m *mockStore) ListScores(context.Context, store.ScoreFilter) ([]model.ScoredPart, error) {
	return nil, nil
}
func (m *mockStore) LogRun(context.Context, model.RunLog) error { return nil }
func (m *mockStore) Migrate(context.Context) error              { return nil }
func (m *mockStore) Close() error                               { return nil }

func TestCollect_Basic(t *testing.T) {
	scored := time.Now().UTC().Add(-2 * time.Hour)
	st := &mockStore{
		stats: &store.ScoreStats{
			Parts:        200,
			AvgPriority:  42.5,
			ZeroCount:    20,
			LastScoredAt: scored,
		},
		runs: []model.RunLog{
			{ID: "run-2", PartCount: 200, BoostedCount: 50},
			{ID: "run-1", PartCount: 180, BoostedCount: 40},
		},
	}

	snap, err := NewCollector(st).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 200, snap.Parts)
	assert.InDelta(t, 42.5, snap.AvgPriority, 0.001)
	assert.Equal(t, 20, snap.ZeroCount)
	assert.InDelta(t, 0.1, snap.ZeroRate, 0.001)
	assert.Equal(t, scored, snap.LastScoredAt)
	assert.InDelta(t, 2.0, snap.StaleHours, 0.1)
	assert.Equal(t, 2, snap.RecentRuns)
	assert.Equal(t, 200, snap.LastRunParts)
	assert.InDelta(t, 0.25, snap.LastRunBoostRate, 0.001)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollect_EmptyStore(t *testing.T) {
	st := &mockStore{}

	snap, err := NewCollector(st).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Parts)
	assert.Zero(t, snap.ZeroRate)
	assert.Zero(t, snap.StaleHours)
	assert.Equal(t, 0, snap.RecentRuns)
	assert.Zero(t, snap.LastRunBoostRate)
}

func TestCollect_StatsError(t *testing.T) {
	st := &mockStore{statsErr: errors.New("connection refused")}

	_, err := NewCollector(st).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score stats")
}

func TestCollect_RunsError(t *testing.T) {
	st := &mockStore{
		stats:   &store.ScoreStats{Parts: 10},
		runsErr: errors.New("connection refused"),
	}

	_, err := NewCollector(st).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
}
