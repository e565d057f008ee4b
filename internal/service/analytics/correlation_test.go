package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

func trendWith(t *testing.T, metric string, points []trend.DataPoint) *trend.Trend {
	t.Helper()
	tr, err := trend.NewTrend(uuid.New(), metric, trend.CategoryLifestyle, trend.TimeframeDaily, nil)
	require.NoError(t, err)
	tr.DataPoints = points
	return tr
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		ys   []float64
		want float64
	}{
		{"perfect positive", []float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10}, 1},
		{"perfect negative", []float64{1, 2, 3, 4, 5}, []float64{10, 8, 6, 4, 2}, -1},
		{"constant series", []float64{1, 2, 3, 4, 5}, []float64{7, 7, 7, 7, 7}, 0},
		{"empty", nil, nil, 0},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Pearson(tt.xs, tt.ys), 1e-9)
		})
	}
}

func TestPearson_Bounds(t *testing.T) {
	xs := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}
	ys := []float64{2, 7, 1, 8, 2, 8, 1, 8, 2, 8}
	r := Pearson(xs, ys)
	assert.False(t, math.IsNaN(r))
	assert.GreaterOrEqual(t, r, -1.0-1e-9)
	assert.LessOrEqual(t, r, 1.0+1e-9)
}

func TestAlignSeries(t *testing.T) {
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	day := func(d int, hour int) time.Time { return base.AddDate(0, 0, d).Add(time.Duration(hour) * time.Hour) }

	t.Run("nearest match within tolerance", func(t *testing.T) {
		target := []trend.DataPoint{
			{Value: 1, Timestamp: day(0, 0)},
			{Value: 2, Timestamp: day(1, 0)},
			{Value: 3, Timestamp: day(2, 0)},
		}
		// Candidate is observed a few hours off each day.
		candidate := []trend.DataPoint{
			{Value: 10, Timestamp: day(0, 5)},
			{Value: 20, Timestamp: day(1, 3)},
			{Value: 30, Timestamp: day(2, 8)},
		}
		xs, ys := AlignSeries(target, candidate, AlignmentTolerance)
		assert.Equal(t, []float64{1, 2, 3}, xs)
		assert.Equal(t, []float64{10, 20, 30}, ys)
	})

	t.Run("points outside tolerance are skipped", func(t *testing.T) {
		target := []trend.DataPoint{
			{Value: 1, Timestamp: day(0, 0)},
			{Value: 2, Timestamp: day(10, 0)},
		}
		candidate := []trend.DataPoint{
			{Value: 10, Timestamp: day(0, 2)},
			{Value: 20, Timestamp: day(4, 0)},
		}
		xs, ys := AlignSeries(target, candidate, AlignmentTolerance)
		assert.Equal(t, []float64{1}, xs)
		assert.Equal(t, []float64{10}, ys)
	})

	t.Run("each candidate is consumed once", func(t *testing.T) {
		target := []trend.DataPoint{
			{Value: 1, Timestamp: day(0, 0)},
			{Value: 2, Timestamp: day(0, 6)},
		}
		candidate := []trend.DataPoint{
			{Value: 10, Timestamp: day(0, 3)},
		}
		xs, _ := AlignSeries(target, candidate, AlignmentTolerance)
		assert.Len(t, xs, 1, "two target points cannot share one candidate")
	})

	t.Run("empty inputs", func(t *testing.T) {
		xs, ys := AlignSeries(nil, nil, AlignmentTolerance)
		assert.Empty(t, xs)
		assert.Empty(t, ys)
	})
}

func TestCorrelate(t *testing.T) {
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	series := func(f func(i int) float64, n int) []trend.DataPoint {
		points := make([]trend.DataPoint, n)
		for i := range points {
			points[i] = trend.DataPoint{Value: f(i), Timestamp: base.AddDate(0, 0, i)}
		}
		return points
	}

	t.Run("linear pair persists as strong and significant", func(t *testing.T) {
		target := trendWith(t, "sleep_hours", series(func(i int) float64 { return float64(i%5) + 5 }, 12))
		candidate := trendWith(t, "mood_score", series(func(i int) float64 { return 2*(float64(i%5)+5) - 3 }, 12))

		entry, persist := Correlate(target, candidate)
		require.True(t, persist)
		assert.Equal(t, "mood_score", entry.MetricName)
		assert.InDelta(t, 1.0, entry.Coefficient, 1e-9)
		assert.Equal(t, trend.StrengthStrong, entry.Strength)
		assert.True(t, entry.Significant)
	})

	t.Run("symmetry", func(t *testing.T) {
		target := trendWith(t, "sleep_hours", series(func(i int) float64 { return float64(i%4) + 6 }, 15))
		candidate := trendWith(t, "steps", series(func(i int) float64 { return -1.5*(float64(i%4)+6) + 30 }, 15))

		ab, okAB := Correlate(target, candidate)
		ba, okBA := Correlate(candidate, target)
		require.True(t, okAB)
		require.True(t, okBA)
		assert.InDelta(t, ab.Coefficient, ba.Coefficient, 1e-9)
	})

	t.Run("too few points on either side", func(t *testing.T) {
		long := trendWith(t, "sleep_hours", series(func(i int) float64 { return float64(i) }, 12))
		short := trendWith(t, "mood_score", series(func(i int) float64 { return float64(i) }, 9))

		_, persist := Correlate(long, short)
		assert.False(t, persist)
		_, persist = Correlate(short, long)
		assert.False(t, persist)
	})

	t.Run("weak correlation is not persisted", func(t *testing.T) {
		// Constant candidate: r is exactly 0.
		target := trendWith(t, "sleep_hours", series(func(i int) float64 { return float64(i % 5) }, 12))
		candidate := trendWith(t, "mood_score", series(func(i int) float64 { return 7 }, 12))

		_, persist := Correlate(target, candidate)
		assert.False(t, persist)
	})

	t.Run("misaligned series yields too few pairs", func(t *testing.T) {
		target := trendWith(t, "sleep_hours", series(func(i int) float64 { return float64(i) }, 12))
		far := make([]trend.DataPoint, 12)
		for i := range far {
			far[i] = trend.DataPoint{Value: float64(i), Timestamp: base.AddDate(1, 0, i)}
		}
		candidate := trendWith(t, "mood_score", far)

		_, persist := Correlate(target, candidate)
		assert.False(t, persist)
	})
}

func TestClassifyStrength(t *testing.T) {
	assert.Equal(t, trend.StrengthWeak, ClassifyStrength(0.4))
	assert.Equal(t, trend.StrengthWeak, ClassifyStrength(0.5))
	assert.Equal(t, trend.StrengthModerate, ClassifyStrength(0.6))
	assert.Equal(t, trend.StrengthModerate, ClassifyStrength(-0.7))
	assert.Equal(t, trend.StrengthStrong, ClassifyStrength(0.71))
	assert.Equal(t, trend.StrengthStrong, ClassifyStrength(-0.9))
}
