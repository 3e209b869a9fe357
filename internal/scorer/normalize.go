package scorer

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/datadojo/partrank/internal/model"
)

// featureStats holds the robust-scaling statistics for one feature over a batch.
type featureStats struct {
	median float64
	iqr    float64
}

// scaledPrefixes marks the continuous features that get robust scaling.
// Binary indicators stay on their 0/1 scale.
var scaledPrefixes = []string{"log_", "inv_", "availability_", "demand_", "economic_"}

func isScaled(feature string) bool {
	for _, p := range scaledPrefixes {
		if strings.HasPrefix(feature, p) {
			return true
		}
	}
	return false
}

// NormalizeBatch rescales each continuous feature by subtracting the batch
// median and dividing by the interquartile range, so that scale differences
// across features (demand counts vs. bounded ratios) do not dominate the
// weighted sum. The statistics are recomputed per batch; identical raw values
// can normalize differently in different batches, which is a deliberate
// batch-relative design.
//
// A zero IQR (constant or near-constant feature) leaves values at zero
// instead of dividing. Returned vectors are new maps; inputs are not mutated.
func NormalizeBatch(ctx context.Context, vectors []model.FeatureVector, features []string) ([]model.FeatureVector, error) {
	stats := make(map[string]featureStats, len(features))

	// Per-feature statistics are independent of each other, so compute them
	// concurrently. Writes target distinct keys pre-assigned below.
	g, _ := errgroup.WithContext(ctx)
	results := make([]featureStats, len(features))
	for i, feat := range features {
		if !isScaled(feat) {
			continue
		}
		g.Go(func() error {
			values := make([]float64, 0, len(vectors))
			for _, fv := range vectors {
				values = append(values, fv[feat])
			}
			results[i] = featureStats{
				median: percentile(values, 50),
				iqr:    percentile(values, 75) - percentile(values, 25),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, feat := range features {
		if isScaled(feat) {
			stats[feat] = results[i]
		}
	}

	normalized := make([]model.FeatureVector, len(vectors))
	for i, fv := range vectors {
		out := make(model.FeatureVector, len(fv))
		for feat, v := range fv {
			st, ok := stats[feat]
			switch {
			case !ok:
				out[feat] = v
			case st.iqr == 0:
				out[feat] = 0
			default:
				out[feat] = (v - st.median) / st.iqr
			}
		}
		normalized[i] = out
	}
	return normalized, nil
}

// percentile computes the p-th percentile (0-100) with linear interpolation
// between closest ranks, matching the convention the batch statistics were
// originally defined under. The input slice is copied, not reordered.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
