package stats

import (
	"fmt"
	"math"
	"sort"
)

// AggregateStats describes a numeric sample. A count of zero means the sample
// was empty (or contained only unusable values) and every other field is zero
// rather than NaN, so formatting code can render "N/A" uniformly.
type AggregateStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// DefaultScoreBins are the histogram bucket edges for scores in [0,1].
var DefaultScoreBins = []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}

// Usable reports whether a value should participate in aggregation. Zero is a
// legitimate score; only nil-ish callers and non-finite values are dropped,
// never falsy ones.
func Usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Filter returns the usable values of a sample, preserving order.
func Filter(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if Usable(v) {
			out = append(out, v)
		}
	}
	return out
}

// Describe computes descriptive statistics over a sample, dropping non-finite
// values first. Std is the population standard deviation.
func Describe(values []float64) AggregateStats {
	sample := Filter(values)
	if len(sample) == 0 {
		return AggregateStats{}
	}

	sum := 0.0
	min := sample[0]
	max := sample[0]
	for _, v := range sample {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(sample))

	variance := 0.0
	for _, v := range sample {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(sample))

	return AggregateStats{
		Mean:   mean,
		Median: median(sample),
		Std:    math.Sqrt(variance),
		Min:    min,
		Max:    max,
		Count:  len(sample),
	}
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return 0.5 * (cp[mid-1] + cp[mid])
}

// Pearson computes the Pearson correlation coefficient over paired samples.
// Mismatched lengths, empty input, pairs with unusable members, or a
// degenerate constant series all yield 0.
func Pearson(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}

	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if Usable(x[i]) && Usable(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	n := float64(len(xs))
	if n == 0 {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	denom := math.Sqrt(varX * varY)
	if denom == 0 {
		return 0
	}
	return cov / denom
}

// Histogram buckets usable values into the half-open ranges defined by bins;
// the last bucket is closed so a value equal to the final edge is counted.
// Labels look like "0.0-0.2". Values outside the bin range are ignored.
func Histogram(values []float64, bins []float64) map[string]int {
	if len(bins) < 2 {
		bins = DefaultScoreBins
	}

	counts := make(map[string]int, len(bins)-1)
	for i := 0; i < len(bins)-1; i++ {
		counts[bucketLabel(bins[i], bins[i+1])] = 0
	}

	for _, v := range Filter(values) {
		for i := 0; i < len(bins)-1; i++ {
			last := i == len(bins)-2
			if v >= bins[i] && (v < bins[i+1] || (last && v == bins[i+1])) {
				counts[bucketLabel(bins[i], bins[i+1])]++
				break
			}
		}
	}
	return counts
}

func bucketLabel(lo, hi float64) string {
	return fmt.Sprintf("%.1f-%.1f", lo, hi)
}
