package scorer

import "sort"

// DegenerateMidpoint is the priority score assigned when every boosted score
// in a batch is identical and min-max scaling would divide by zero.
const DegenerateMidpoint = 50.0

// Rank maps boosted scores onto the final 0-100 priority scale via min-max
// scaling over the batch, and computes each record's percentile among the
// batch. Both outputs are batch-relative by design.
//
// Percentiles are tie-aware: a record's percentile is the fraction of other
// records with a strictly lower boosted score, so ties share a value, the
// unique maximum lands on 100, and the unique minimum on 0. Row order never
// affects the result.
func Rank(boosted []float64) (priority, percentile []float64) {
	n := len(boosted)
	priority = make([]float64, n)
	percentile = make([]float64, n)
	if n == 0 {
		return priority, percentile
	}

	min, max := boosted[0], boosted[0]
	for _, v := range boosted[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if max == min {
		for i := range priority {
			priority[i] = DegenerateMidpoint
			percentile[i] = DegenerateMidpoint
		}
		return priority, percentile
	}

	for i, v := range boosted {
		priority[i] = 100 * (v - min) / (max - min)
	}

	// countBelow[i] = number of records with a strictly lower boosted score,
	// found by binary search over the sorted scores.
	sorted := make([]float64, n)
	copy(sorted, boosted)
	sort.Float64s(sorted)

	for i, v := range boosted {
		below := sort.SearchFloat64s(sorted, v)
		percentile[i] = 100 * float64(below) / float64(n-1)
	}

	return priority, percentile
}
