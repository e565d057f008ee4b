package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/prediction"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

func TestMemoryTrendRepository(t *testing.T) {
	repo := NewMemoryTrendRepository()
	ctx := context.Background()
	subjectID := uuid.New()

	tr, err := trend.NewTrend(subjectID, "mood_score", trend.CategoryMentalHealth, trend.TimeframeDaily, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, tr))

	t.Run("lookup is case insensitive on the metric", func(t *testing.T) {
		got, err := repo.GetBySubjectAndMetric(ctx, subjectID, "Mood_Score")
		require.NoError(t, err)
		assert.Equal(t, tr.ID, got.ID)
	})

	t.Run("missing metric", func(t *testing.T) {
		_, err := repo.GetBySubjectAndMetric(ctx, subjectID, "absent")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := repo.GetBySubjectAndMetric(ctx, uuid.New(), "mood_score")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("list filters inactive", func(t *testing.T) {
		other, err := trend.NewTrend(subjectID, "steps", trend.CategoryPhysicalHealth, trend.TimeframeDaily, nil)
		require.NoError(t, err)
		other.Deactivate()
		require.NoError(t, repo.Save(ctx, other))

		all, err := repo.ListBySubject(ctx, subjectID, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		active, err := repo.ListBySubject(ctx, subjectID, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "mood_score", active[0].MetricName)
	})
}

func TestMemoryTrendRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryTrendRepository()
	ctx := context.Background()
	subjectID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tr, err := trend.NewTrend(subjectID, "mood_score", trend.CategoryMentalHealth, trend.TimeframeDaily, nil)
	require.NoError(t, err)
	require.NoError(t, tr.AppendDataPoint(trend.DataPoint{Value: 5, Timestamp: base, Source: trend.SourceDevice}))
	require.NoError(t, repo.Save(ctx, tr))

	t.Run("mutating a read result leaves the store untouched", func(t *testing.T) {
		got, err := repo.GetBySubjectAndMetric(ctx, subjectID, "mood_score")
		require.NoError(t, err)
		require.NoError(t, got.AppendDataPoint(trend.DataPoint{Value: 6, Timestamp: base.Add(time.Hour), Source: trend.SourceDevice}))

		again, err := repo.GetBySubjectAndMetric(ctx, subjectID, "mood_score")
		require.NoError(t, err)
		assert.Len(t, again.DataPoints, 1)
	})

	t.Run("mutating after save leaves the store untouched", func(t *testing.T) {
		require.NoError(t, tr.AppendDataPoint(trend.DataPoint{Value: 7, Timestamp: base.Add(2 * time.Hour), Source: trend.SourceDevice}))

		got, err := repo.GetBySubjectAndMetric(ctx, subjectID, "mood_score")
		require.NoError(t, err)
		assert.Len(t, got.DataPoints, 1)
	})
}

// A writer appending observations and a reader serializing the list must
// never touch the same backing arrays.
func TestMemoryTrendRepositoryConcurrentReadWrite(t *testing.T) {
	repo := NewMemoryTrendRepository()
	ctx := context.Background()
	subjectID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seed, err := trend.NewTrend(subjectID, "mood_score", trend.CategoryMentalHealth, trend.TimeframeDaily, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, seed))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			tr, err := repo.GetBySubjectAndMetric(ctx, subjectID, "mood_score")
			if err != nil {
				t.Error(err)
				return
			}
			if err := tr.AppendDataPoint(trend.DataPoint{
				Value:     float64(i),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Source:    trend.SourceDevice,
			}); err != nil {
				t.Error(err)
				return
			}
			if err := repo.Save(ctx, tr); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			list, err := repo.ListBySubject(ctx, subjectID, true)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := json.Marshal(list); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestMemoryAssessmentRepository(t *testing.T) {
	repo := NewMemoryAssessmentRepository()
	ctx := context.Background()
	subjectID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock := &assessment.MockClock{CurrentTime: base}
	assessment.SetClock(mock)
	t.Cleanup(assessment.ResetClock)

	seed := func(typ assessment.Type, score float64) *assessment.RiskAssessment {
		a, err := assessment.New(subjectID, typ, score, assessment.LevelModerate, nil, nil, 0.5, mock.CurrentTime.Add(24*time.Hour))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, a))
		mock.Advance(24 * time.Hour)
		return a
	}

	first := seed(assessment.TypeComprehensive, 40)
	seed(assessment.TypeMentalHealth, 55)
	latest := seed(assessment.TypeComprehensive, 45)

	t.Run("latest by type", func(t *testing.T) {
		got, err := repo.LatestByType(ctx, subjectID, assessment.TypeComprehensive)
		require.NoError(t, err)
		assert.Equal(t, latest.ID, got.ID)

		_, err = repo.LatestByType(ctx, subjectID, assessment.TypeMedication)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("list since", func(t *testing.T) {
		all, err := repo.ListBySubject(ctx, subjectID, base)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		recent, err := repo.ListBySubject(ctx, subjectID, base.Add(36*time.Hour))
		require.NoError(t, err)
		assert.Len(t, recent, 1)
	})

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)

		_, err = repo.GetByID(ctx, uuid.New())
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("update unknown assessment", func(t *testing.T) {
		stray, err := assessment.New(uuid.New(), assessment.TypeComprehensive, 10, assessment.LevelLow, nil, nil, 0.5, base)
		require.NoError(t, err)
		assert.True(t, errors.IsNotFound(repo.Update(ctx, stray)))
	})

	t.Run("update existing", func(t *testing.T) {
		first.AnnotateNotes("reviewed")
		require.NoError(t, repo.Update(ctx, first))
	})
}

func TestMemoryPredictionRepository(t *testing.T) {
	repo := NewMemoryPredictionRepository()
	ctx := context.Background()
	subjectID := uuid.New()

	p, err := prediction.New(subjectID, prediction.TypeEmergencyRisk, prediction.Timeframe3Days, 50, 0.5, nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, p))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)

		_, err = repo.GetByID(ctx, uuid.New())
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("active listing skips deactivated", func(t *testing.T) {
		second, err := prediction.New(subjectID, prediction.TypeMentalHealthRisk, prediction.Timeframe1Week, 40, 0.5, nil, nil)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, second))

		p.Deactivate()
		require.NoError(t, repo.Update(ctx, p))

		active, err := repo.ListActiveBySubject(ctx, subjectID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, second.ID, active[0].ID)
	})

	t.Run("update unknown prediction", func(t *testing.T) {
		stray, err := prediction.New(subjectID, prediction.TypeEmergencyRisk, prediction.Timeframe1Day, 10, 0.5, nil, nil)
		require.NoError(t, err)
		stray.ID = uuid.New()
		assert.True(t, errors.IsNotFound(repo.Update(ctx, stray)))
	})
}
