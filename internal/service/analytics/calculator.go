package analytics

import (
	"math"
	"time"

	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

const (
	// recentWindow is how many trailing points form the "recent" trajectory
	// compared against the points before them.
	recentWindow = 7

	// slopeBand is the relative change below which a trend without targets
	// counts as stable.
	slopeBand = 0.05

	// gapThreshold is the observation gap counted by gap analysis.
	gapThreshold = 48 * time.Hour

	movementEpsilon = 1e-9
)

// Result is the derived trend state for one series.
type Result struct {
	CurrentValue     float64
	Direction        trend.Direction
	Strength         float64
	ChangePercentage float64
}

// Calculate derives direction, strength and change percentage from the
// ordered data points. Direction is movement toward (improving) or away
// from (declining) the ideal range; without targets it falls back to the
// net slope with a ±5% stable band.
func Calculate(points []trend.DataPoint, targets *trend.Targets) Result {
	if len(points) == 0 {
		return Result{Direction: trend.DirectionStable}
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	current := values[len(values)-1]

	res := Result{
		CurrentValue:     current,
		Direction:        trend.DirectionStable,
		ChangePercentage: changePercentage(values),
	}
	if len(values) < 2 {
		return res
	}

	recent, previous := splitWindows(values)

	if targets == nil {
		res.Direction = slopeDirection(values)
		if res.Direction != trend.DirectionStable {
			res.Strength = normalizedShift(mean(previous), mean(recent), values)
		}
		return res
	}

	prevDist := targets.Ideal.Distance(mean(previous))
	recentDist := targets.Ideal.Distance(mean(recent))

	switch {
	case recentDist < prevDist-movementEpsilon:
		res.Direction = trend.DirectionImproving
	case recentDist > prevDist+movementEpsilon:
		res.Direction = trend.DirectionDeclining
	default:
		res.Direction = trend.DirectionStable
		return res
	}

	res.Strength = normalizedShift(prevDist, recentDist, values)
	return res
}

// Quality scores completeness against the one-observation-per-day
// expectation and consistency as 1 minus the coefficient of variation.
// Zero-mean series get consistency 0 rather than a division error.
func Quality(points []trend.DataPoint) trend.DataQuality {
	q := trend.DataQuality{}
	if len(points) == 0 {
		return q
	}

	first := points[0].Timestamp
	last := points[len(points)-1].Timestamp
	expected := math.Ceil(last.Sub(first).Hours()/24) + 1
	if expected < 1 {
		expected = 1
	}
	q.Completeness = math.Min(1, float64(len(points))/expected)

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	m := mean(values)
	if m != 0 {
		cv := stdDev(values, m) / math.Abs(m)
		q.Consistency = math.Max(0, 1-cv)
	}

	for i := 1; i < len(points); i++ {
		gap := points[i].Timestamp.Sub(points[i-1].Timestamp)
		if gap > gapThreshold {
			q.Gaps.GapCount++
			if gap > q.Gaps.LargestGap {
				q.Gaps.LargestGap = gap
			}
		}
	}

	return q
}

func splitWindows(values []float64) (recent, previous []float64) {
	w := recentWindow
	if len(values) < 2*w {
		w = len(values) / 2
	}
	if w == 0 {
		w = 1
	}
	recent = values[len(values)-w:]
	previous = values[:len(values)-w]
	if len(previous) > w {
		previous = previous[len(previous)-w:]
	}
	return recent, previous
}

func slopeDirection(values []float64) trend.Direction {
	first := values[0]
	last := values[len(values)-1]
	if first == 0 {
		if last == 0 {
			return trend.DirectionStable
		}
		return trend.DirectionDeclining
	}
	change := (last - first) / math.Abs(first)
	switch {
	case change > slopeBand:
		return trend.DirectionImproving
	case change < -slopeBand:
		return trend.DirectionDeclining
	default:
		return trend.DirectionStable
	}
}

// normalizedShift scales the window-to-window movement by the observed
// value span, clamped to [0,1].
func normalizedShift(before, after float64, values []float64) float64 {
	span := valueSpan(values)
	if span == 0 {
		return 0
	}
	return math.Min(1, math.Abs(after-before)/span)
}

func changePercentage(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	first := values[0]
	if first == 0 {
		return 0
	}
	return (values[len(values)-1] - first) / math.Abs(first) * 100
}

func valueSpan(values []float64) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation.
func stdDev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}
