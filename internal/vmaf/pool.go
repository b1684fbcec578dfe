package vmaf

import (
	"fmt"
	"strings"
)

// PoolMethod selects how per-frame scores collapse into one value.
type PoolMethod string

const (
	PoolMean         PoolMethod = "mean"
	PoolHarmonicMean PoolMethod = "harmonic_mean"
	PoolMin          PoolMethod = "min"
)

// ParsePool validates a pool method name.
func ParsePool(name string) (PoolMethod, error) {
	switch PoolMethod(strings.ToLower(strings.TrimSpace(name))) {
	case PoolMean:
		return PoolMean, nil
	case PoolHarmonicMean:
		return PoolHarmonicMean, nil
	case PoolMin:
		return PoolMin, nil
	default:
		return "", fmt.Errorf("unknown pool method %q", name)
	}
}

// Pool applies the method to a non-empty score slice.
func (m PoolMethod) Pool(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("no scores to pool")
	}
	switch m {
	case PoolHarmonicMean:
		return HarmonicMean(scores), nil
	case PoolMin:
		return Min(scores), nil
	default:
		return Mean(scores), nil
	}
}

// Mean returns the arithmetic mean of scores.
func Mean(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// Min returns the smallest score.
func Min(scores []float64) float64 {
	min := scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
	}
	return min
}

// HarmonicMean returns the harmonic mean of scores, shifting by one to
// stay defined when a frame scores zero.
func HarmonicMean(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += 1 / (s + 1)
	}
	return float64(len(scores))/sum - 1
}
