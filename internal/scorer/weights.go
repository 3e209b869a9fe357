package scorer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/datadojo/partrank/internal/model"
)

// WeightConfig maps feature names to non-negative weights summing to 1.0.
type WeightConfig map[string]float64

// WeightSumTolerance is the allowed deviation of a weight profile's sum from 1.0.
const WeightSumTolerance = 1e-6

// ValidateWeights checks a weight profile against the feature set the
// engineer can produce. It runs once at configuration load: a bad profile is
// a configuration error that fails the whole run before any record is scored.
func ValidateWeights(weights WeightConfig, declared []string) error {
	if len(weights) == 0 {
		return eris.New("scorer: weight config is empty")
	}

	producible := make(map[string]bool, len(declared))
	for _, f := range declared {
		producible[f] = true
	}

	var errs []string
	var sum float64
	for _, feat := range sortedKeys(weights) {
		w := weights[feat]
		if w < 0 {
			errs = append(errs, fmt.Sprintf("weight for %s must be >= 0 (got %g)", feat, w))
		}
		if !producible[feat] {
			errs = append(errs, fmt.Sprintf("weight references feature %s the engineer cannot produce", feat))
		}
		sum += w
	}

	if math.Abs(sum-1.0) > WeightSumTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.6f", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// BaseScore computes the weighted linear combination of normalized features.
// Features absent from the weight profile contribute nothing; for fixed
// inputs the result is a pure function with no ordering dependency.
func BaseScore(normalized model.FeatureVector, weights WeightConfig) float64 {
	var score float64
	for feat, w := range weights {
		score += w * normalized[feat]
	}
	return score
}

func sortedKeys(m WeightConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
