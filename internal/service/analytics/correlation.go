package analytics

import (
	"math"
	"time"

	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

const (
	// MinCorrelationPoints gates correlation before any alignment work.
	MinCorrelationPoints = 10

	// MinAlignedPairs is the minimum time-aligned pairs Pearson needs.
	MinAlignedPairs = 5

	// AlignmentTolerance is the nearest-timestamp matching window.
	AlignmentTolerance = 24 * time.Hour

	// PersistThreshold: entries with |r| at or below it are pruned.
	PersistThreshold = 0.3

	// SignificanceThreshold: |r| above it marks the entry significant.
	SignificanceThreshold = 0.5

	// StrongThreshold: |r| above it classifies as strong.
	StrongThreshold = 0.7
)

// Correlate computes the Pearson correlation between a target trend and a
// candidate trend of the same subject. The second return value reports
// whether the entry is worth persisting (|r| > PersistThreshold). Both
// trends need at least MinCorrelationPoints observations and at least
// MinAlignedPairs time-aligned pairs.
func Correlate(target, candidate *trend.Trend) (trend.CorrelationEntry, bool) {
	if len(target.DataPoints) < MinCorrelationPoints || len(candidate.DataPoints) < MinCorrelationPoints {
		return trend.CorrelationEntry{}, false
	}

	xs, ys := AlignSeries(target.DataPoints, candidate.DataPoints, AlignmentTolerance)
	if len(xs) < MinAlignedPairs {
		return trend.CorrelationEntry{}, false
	}

	r := Pearson(xs, ys)
	if math.Abs(r) <= PersistThreshold {
		return trend.CorrelationEntry{}, false
	}

	return trend.CorrelationEntry{
		MetricName:  candidate.MetricName,
		Coefficient: r,
		Strength:    ClassifyStrength(r),
		Significant: math.Abs(r) > SignificanceThreshold,
	}, true
}

// AlignSeries pairs each target point with its nearest unconsumed candidate
// point within the tolerance window. One candidate match per target point,
// no interpolation. Both inputs must be time-ordered.
func AlignSeries(target, candidate []trend.DataPoint, tolerance time.Duration) (xs, ys []float64) {
	j := 0
	for _, tp := range target {
		// Advance past candidates that are further behind than the next
		// one is ahead.
		for j+1 < len(candidate) {
			cur := absDuration(candidate[j].Timestamp.Sub(tp.Timestamp))
			next := absDuration(candidate[j+1].Timestamp.Sub(tp.Timestamp))
			if next >= cur {
				break
			}
			j++
		}
		if j >= len(candidate) {
			break
		}
		if absDuration(candidate[j].Timestamp.Sub(tp.Timestamp)) <= tolerance {
			xs = append(xs, tp.Value)
			ys = append(ys, candidate[j].Value)
			j++
		}
	}
	return xs, ys
}

// Pearson computes the correlation coefficient between two equal-length
// series. A zero denominator (either series constant) yields 0.
func Pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 || len(xs) != len(ys) {
		return 0
	}

	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
		sumYY += ys[i] * ys[i]
	}

	den := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}

// ClassifyStrength buckets a coefficient by magnitude.
func ClassifyStrength(r float64) trend.CorrelationStrength {
	abs := math.Abs(r)
	switch {
	case abs > StrongThreshold:
		return trend.StrengthStrong
	case abs > SignificanceThreshold:
		return trend.StrengthModerate
	default:
		return trend.StrengthWeak
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
