package scorer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datadojo/partrank/internal/model"
)

func vectorsFor(feature string, values ...float64) []model.FeatureVector {
	out := make([]model.FeatureVector, len(values))
	for i, v := range values {
		out[i] = model.FeatureVector{feature: v}
	}
	return out
}

func TestNormalizeBatchRobustScaling(t *testing.T) {
	t.Parallel()

	// Median 3, IQR = 4-2 = 2.
	vecs := vectorsFor("demand_score", 1, 2, 3, 4, 5)
	got, err := NormalizeBatch(context.Background(), vecs, []string{"demand_score"})
	require.NoError(t, err)

	assert.InDelta(t, -1.0, got[0]["demand_score"], 1e-9)
	assert.InDelta(t, 0.0, got[2]["demand_score"], 1e-9)
	assert.InDelta(t, 1.0, got[4]["demand_score"], 1e-9)
}

func TestNormalizeBatchZeroIQRFallsBackToZero(t *testing.T) {
	t.Parallel()

	vecs := vectorsFor("log_inventory", 7, 7, 7, 7)
	got, err := NormalizeBatch(context.Background(), vecs, []string{"log_inventory"})
	require.NoError(t, err)

	for _, fv := range got {
		assert.Equal(t, 0.0, fv["log_inventory"])
	}
}

func TestNormalizeBatchOutlierResistance(t *testing.T) {
	t.Parallel()

	// One extreme outlier must not flatten the rest of the batch toward a
	// single value, which is exactly what min-max scaling would do here.
	vecs := vectorsFor("demand_score", 1, 2, 3, 4, 500_000)
	got, err := NormalizeBatch(context.Background(), vecs, []string{"demand_score"})
	require.NoError(t, err)

	spread := math.Abs(got[3]["demand_score"] - got[0]["demand_score"])
	assert.Greater(t, spread, 0.5, "non-outlier records should remain distinguishable")
}

func TestNormalizeBatchLeavesBinaryFeaturesAlone(t *testing.T) {
	t.Parallel()

	vecs := []model.FeatureVector{
		{FeatIsAuthorized: 1, "demand_score": 10},
		{FeatIsAuthorized: 0, "demand_score": 20},
		{FeatIsAuthorized: 1, "demand_score": 30},
	}
	got, err := NormalizeBatch(context.Background(), vecs, []string{FeatIsAuthorized, "demand_score"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, got[0][FeatIsAuthorized])
	assert.Equal(t, 0.0, got[1][FeatIsAuthorized])
	assert.NotEqual(t, 10.0, got[0]["demand_score"])
}

func TestNormalizeBatchFinite(t *testing.T) {
	t.Parallel()

	vecs := vectorsFor("inv_moq", 0, 0, 0, 1e18)
	got, err := NormalizeBatch(context.Background(), vecs, []string{"inv_moq"})
	require.NoError(t, err)

	for _, fv := range got {
		for name, v := range fv {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "feature %s not finite", name)
		}
	}
}

func TestPercentileInterpolation(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"median odd", []float64{3, 1, 2}, 50, 2},
		{"median even interpolates", []float64{1, 2, 3, 4}, 50, 2.5},
		{"q1", []float64{1, 2, 3, 4, 5}, 25, 2},
		{"q3", []float64{1, 2, 3, 4, 5}, 75, 4},
		{"single value", []float64{9}, 75, 9},
		{"empty", nil, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, percentile(tt.values, tt.p), 1e-9)
		})
	}
}
