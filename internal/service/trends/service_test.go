package trends

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/repository"
)

type staticTargets struct {
	targets map[string]*trend.Targets
}

func (s staticTargets) TargetsFor(metricName string) *trend.Targets {
	return s.targets[metricName]
}

func newTestService(t *testing.T, resolver TargetResolver) Service {
	t.Helper()
	return NewService(repository.NewMemoryTrendRepository(), resolver, nil, zaptest.NewLogger(t))
}

func TestAddObservation_CreatesTrendOnFirstSight(t *testing.T) {
	svc := newTestService(t, nil)
	subjectID := uuid.New()

	tr, err := svc.AddObservation(context.Background(), ObservationRequest{
		SubjectID:  subjectID,
		MetricName: "Mood_Score",
		Category:   trend.CategoryMentalHealth,
		Value:      7.5,
		Timestamp:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, subjectID, tr.SubjectID)
	assert.Equal(t, "mood_score", tr.MetricName, "metric names normalize to lower case")
	assert.True(t, tr.IsActive)
	assert.Len(t, tr.DataPoints, 1)
	assert.Equal(t, trend.SourceManual, tr.DataPoints[0].Source, "source defaults to manual")
	assert.Equal(t, 7.5, tr.Analytics.CurrentValue)
	assert.Equal(t, trend.DirectionStable, tr.Analytics.Direction, "single point is stable")
}

func TestAddObservation_Validation(t *testing.T) {
	svc := newTestService(t, nil)
	base := ObservationRequest{
		SubjectID:  uuid.New(),
		MetricName: "sleep_hours",
		Category:   trend.CategoryLifestyle,
		Value:      7,
	}

	tests := []struct {
		name   string
		mutate func(*ObservationRequest)
	}{
		{"nil subject", func(r *ObservationRequest) { r.SubjectID = uuid.Nil }},
		{"empty metric", func(r *ObservationRequest) { r.MetricName = "   " }},
		{"unknown category", func(r *ObservationRequest) { r.Category = "astrology" }},
		{"NaN value", func(r *ObservationRequest) { r.Value = math.NaN() }},
		{"infinite value", func(r *ObservationRequest) { r.Value = math.Inf(1) }},
		{"unknown source", func(r *ObservationRequest) { r.Source = "carrier_pigeon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := svc.AddObservation(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestAddObservation_LateArrivalKeepsTimeOrder(t *testing.T) {
	svc := newTestService(t, nil)
	subjectID := uuid.New()
	day := func(d int) time.Time { return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC) }

	for _, d := range []int{1, 3, 2} {
		_, err := svc.AddObservation(context.Background(), ObservationRequest{
			SubjectID:  subjectID,
			MetricName: "steps",
			Category:   trend.CategoryPhysicalHealth,
			Value:      float64(d * 1000),
			Timestamp:  day(d),
		})
		require.NoError(t, err)
	}

	tr, err := svc.GetTrend(context.Background(), subjectID, "steps")
	require.NoError(t, err)
	require.Len(t, tr.DataPoints, 3)
	for i := 1; i < len(tr.DataPoints); i++ {
		assert.False(t, tr.DataPoints[i].Timestamp.Before(tr.DataPoints[i-1].Timestamp))
	}
	assert.Equal(t, 3000.0, tr.Analytics.CurrentValue, "current value is the latest by timestamp")
}

func TestAddObservation_WeeklyCycleDetected(t *testing.T) {
	svc := newTestService(t, nil)
	subjectID := uuid.New()
	start := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	// 21 days of a clean 7-day sinusoid.
	var tr *trend.Trend
	var err error
	for i := 0; i < 21; i++ {
		tr, err = svc.AddObservation(context.Background(), ObservationRequest{
			SubjectID:  subjectID,
			MetricName: "energy_level",
			Category:   trend.CategoryMentalHealth,
			Value:      50 + 10*math.Sin(2*math.Pi*float64(i)/7),
			Timestamp:  start.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}

	require.Len(t, tr.Patterns, 1)
	p := tr.Patterns[0]
	assert.Equal(t, "weekly_cycle", p.Kind)
	assert.Equal(t, 7, p.Lag)
	assert.True(t, p.Detected)
	assert.Greater(t, p.Confidence, 0.5)
}

func TestAddObservation_NoPatternOnShortOrFlatSeries(t *testing.T) {
	svc := newTestService(t, nil)
	start := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	t.Run("short series", func(t *testing.T) {
		subjectID := uuid.New()
		var tr *trend.Trend
		var err error
		for i := 0; i < 13; i++ {
			tr, err = svc.AddObservation(context.Background(), ObservationRequest{
				SubjectID:  subjectID,
				MetricName: "mood_score",
				Category:   trend.CategoryMentalHealth,
				Value:      float64(i % 7),
				Timestamp:  start.AddDate(0, 0, i),
			})
			require.NoError(t, err)
		}
		assert.Empty(t, tr.Patterns)
	})

	t.Run("constant series", func(t *testing.T) {
		subjectID := uuid.New()
		var tr *trend.Trend
		var err error
		for i := 0; i < 20; i++ {
			tr, err = svc.AddObservation(context.Background(), ObservationRequest{
				SubjectID:  subjectID,
				MetricName: "resting_hr",
				Category:   trend.CategoryPhysicalHealth,
				Value:      60,
				Timestamp:  start.AddDate(0, 0, i),
			})
			require.NoError(t, err)
		}
		require.Len(t, tr.Patterns, 1)
		assert.False(t, tr.Patterns[0].Detected)
		assert.Zero(t, tr.Patterns[0].Confidence)
	})
}

func TestAddObservation_CorrelationsMirroredOnBothTrends(t *testing.T) {
	svc := newTestService(t, nil)
	subjectID := uuid.New()
	start := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	add := func(metric string, category trend.Category, value float64, day int) {
		_, err := svc.AddObservation(context.Background(), ObservationRequest{
			SubjectID:  subjectID,
			MetricName: metric,
			Category:   category,
			Value:      value,
			Timestamp:  start.AddDate(0, 0, day),
		})
		require.NoError(t, err)
	}

	// sleep_hours varies; mood_score follows it linearly on the same days.
	values := []float64{6, 7, 5, 8, 6.5, 7.5, 5.5, 8.5, 6, 7}
	for i, v := range values {
		add("sleep_hours", trend.CategoryLifestyle, v, i)
	}
	for i, v := range values {
		add("mood_score", trend.CategoryMentalHealth, 2*v-4, i)
	}

	mood, err := svc.GetTrend(context.Background(), subjectID, "mood_score")
	require.NoError(t, err)
	require.Len(t, mood.Correlations, 1)
	entry := mood.Correlations[0]
	assert.Equal(t, "sleep_hours", entry.MetricName)
	assert.InDelta(t, 1.0, entry.Coefficient, 1e-9)
	assert.Equal(t, trend.StrengthStrong, entry.Strength)
	assert.True(t, entry.Significant)

	sleep, err := svc.GetTrend(context.Background(), subjectID, "sleep_hours")
	require.NoError(t, err)
	require.Len(t, sleep.Correlations, 1)
	assert.Equal(t, "mood_score", sleep.Correlations[0].MetricName)
	assert.InDelta(t, entry.Coefficient, sleep.Correlations[0].Coefficient, 1e-9)
}

func TestAddObservation_AppliesConfiguredTargets(t *testing.T) {
	resolver := staticTargets{targets: map[string]*trend.Targets{
		"mood_score": {
			Ideal:    trend.Range{Min: 6, Max: 10},
			Warning:  trend.Range{Min: 4, Max: 10},
			Critical: trend.Range{Min: 2, Max: 10},
		},
	}}
	svc := newTestService(t, resolver)
	subjectID := uuid.New()

	tr, err := svc.AddObservation(context.Background(), ObservationRequest{
		SubjectID:  subjectID,
		MetricName: "mood_score",
		Category:   trend.CategoryMentalHealth,
		Value:      3,
		Timestamp:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotNil(t, tr.Targets)
	assert.Equal(t, trend.StatusWarning, tr.CurrentStatus())
}

func TestGetTrends_FilterByCategory(t *testing.T) {
	svc := newTestService(t, nil)
	subjectID := uuid.New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, m := range []struct {
		name     string
		category trend.Category
	}{
		{"mood_score", trend.CategoryMentalHealth},
		{"steps", trend.CategoryPhysicalHealth},
		{"sleep_hours", trend.CategoryLifestyle},
	} {
		_, err := svc.AddObservation(context.Background(), ObservationRequest{
			SubjectID:  subjectID,
			MetricName: m.name,
			Category:   m.category,
			Value:      1,
			Timestamp:  now,
		})
		require.NoError(t, err)
	}

	all, err := svc.GetTrends(context.Background(), subjectID, TrendFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mental := trend.CategoryMentalHealth
	filtered, err := svc.GetTrends(context.Background(), subjectID, TrendFilter{Category: &mental})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "mood_score", filtered[0].MetricName)
}

func TestDeactivateTrend(t *testing.T) {
	svc := newTestService(t, nil)
	subjectID := uuid.New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := svc.AddObservation(context.Background(), ObservationRequest{
		SubjectID:  subjectID,
		MetricName: "steps",
		Category:   trend.CategoryPhysicalHealth,
		Value:      4000,
		Timestamp:  now,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateTrend(context.Background(), subjectID, "steps"))

	active, err := svc.GetTrends(context.Background(), subjectID, TrendFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	// History survives the soft delete.
	tr, err := svc.GetTrend(context.Background(), subjectID, "steps")
	require.NoError(t, err)
	assert.False(t, tr.IsActive)
	assert.Len(t, tr.DataPoints, 1)

	t.Run("unknown metric", func(t *testing.T) {
		err := svc.DeactivateTrend(context.Background(), subjectID, "missing")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestOscillatingStressSeries(t *testing.T) {
	svc := newTestService(t, nil)
	subjectID := uuid.New()
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	// 30 days oscillating between 2 and 8 with a weekly spike.
	var tr *trend.Trend
	var err error
	for i := 0; i < 30; i++ {
		tr, err = svc.AddObservation(context.Background(), ObservationRequest{
			SubjectID:  subjectID,
			MetricName: "stress_level",
			Category:   trend.CategoryMentalHealth,
			Value:      5 + 3*math.Sin(2*math.Pi*float64(i)/7),
			Timestamp:  start.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}

	// 30 points is 4.3 cycles, so the window ends partway up a rise and
	// the net first-to-last slope is positive.
	assert.Equal(t, trend.DirectionImproving, tr.Analytics.Direction)
	require.Len(t, tr.Patterns, 1)
	assert.True(t, tr.Patterns[0].Detected)
	assert.Greater(t, tr.Patterns[0].Confidence, 0.5)
}

func TestInverseMetricsCorrelateNegatively(t *testing.T) {
	svc := newTestService(t, nil)
	subjectID := uuid.New()
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)

	add := func(metric string, value float64, day int) {
		_, err := svc.AddObservation(context.Background(), ObservationRequest{
			SubjectID:  subjectID,
			MetricName: metric,
			Category:   trend.CategoryLifestyle,
			Value:      value,
			Timestamp:  start.AddDate(0, 0, day),
		})
		require.NoError(t, err)
	}

	// One rises while the other falls, day by day.
	for i := 0; i < 12; i++ {
		add("stress_level", float64(1+i), i)
		add("sleep_quality", float64(12-i), i)
	}

	tr, err := svc.GetTrend(context.Background(), subjectID, "stress_level")
	require.NoError(t, err)
	require.Len(t, tr.Correlations, 1)

	entry := tr.Correlations[0]
	assert.Equal(t, "sleep_quality", entry.MetricName)
	assert.Less(t, entry.Coefficient, -0.5)
	assert.True(t, entry.Significant)
	assert.Contains(t, []trend.CorrelationStrength{
		trend.StrengthModerate, trend.StrengthStrong,
	}, entry.Strength)
}
