package predictor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/prediction"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/events"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/repository"
)

type stubAssessments struct {
	assessment *assessment.RiskAssessment
}

func (s *stubAssessments) GenerateAssessment(context.Context, uuid.UUID, assessment.Type, bool) (*assessment.RiskAssessment, error) {
	return s.assessment, nil
}

type capturePublisher struct {
	published []events.Notification
}

func (p *capturePublisher) Publish(_ context.Context, n events.Notification) error {
	p.published = append(p.published, n)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type fixture struct {
	svc         Service
	repo        *repository.MemoryPredictionRepository
	trendRepo   *repository.MemoryTrendRepository
	assessments *stubAssessments
	publisher   *capturePublisher
	clock       *MockClock
	subjectID   uuid.UUID
}

func newFixture(t *testing.T, overall float64, scores map[trend.Category]float64, alerts []assessment.Alert) *fixture {
	t.Helper()

	mock := &MockClock{CurrentTime: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	SetClock(mock)
	prediction.SetClock(mock)
	t.Cleanup(func() {
		ResetClock()
		prediction.ResetClock()
	})

	subjectID := uuid.New()
	level := assessment.LevelModerate
	if overall >= 75 {
		level = assessment.LevelCritical
	}
	a, err := assessment.New(subjectID, assessment.TypeComprehensive, overall, level, scores, alerts, 0.8, mock.CurrentTime.Add(24*time.Hour))
	require.NoError(t, err)

	f := &fixture{
		repo:        repository.NewMemoryPredictionRepository(),
		trendRepo:   repository.NewMemoryTrendRepository(),
		assessments: &stubAssessments{assessment: a},
		publisher:   &capturePublisher{},
		clock:       mock,
		subjectID:   subjectID,
	}
	f.svc = NewService(f.repo, f.trendRepo, f.assessments, nil, f.publisher, nil, DefaultReuseWindow, zaptest.NewLogger(t))
	return f
}

func (f *fixture) seedTrend(t *testing.T, metric string, category trend.Category, direction trend.Direction, points int) {
	t.Helper()
	tr, err := trend.NewTrend(f.subjectID, metric, category, trend.TimeframeDaily, nil)
	require.NoError(t, err)
	for i := 0; i < points; i++ {
		require.NoError(t, tr.AppendDataPoint(trend.DataPoint{
			Value:     float64(i),
			Timestamp: f.clock.CurrentTime.AddDate(0, 0, -points+i),
			Source:    trend.SourceDevice,
		}))
	}
	tr.Analytics.Direction = direction
	tr.Analytics.Strength = 0.9
	require.NoError(t, f.trendRepo.Save(context.Background(), tr))
}

func TestGeneratePredictions_ProducesAllTypes(t *testing.T) {
	f := newFixture(t, 40, map[trend.Category]float64{
		trend.CategoryMentalHealth: 55,
		trend.CategoryMedication:   30,
	}, nil)
	f.seedTrend(t, "mood_score", trend.CategoryMentalHealth, trend.DirectionStable, 15)

	batch, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)
	require.Len(t, batch, 4)

	byType := make(map[prediction.Type]*prediction.HealthPrediction)
	for _, p := range batch {
		byType[p.Type] = p
		assert.True(t, p.IsActive)
		assert.Equal(t, prediction.OutcomePending, p.Outcome)
		assert.Equal(t, p.CreatedAt.Add(p.Timeframe.Duration()), p.ValidUntil)
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 1.0)
	}

	assert.Equal(t, 55.0, byType[prediction.TypeMentalHealthRisk].RiskScore, "mental health reads its category score")
	assert.Equal(t, 30.0, byType[prediction.TypeMedicationAdherence].RiskScore)
	assert.Equal(t, 40.0, byType[prediction.TypeEmergencyRisk].RiskScore, "no critical alert, emergency tracks overall")
	assert.Equal(t, prediction.Timeframe3Days, byType[prediction.TypeEmergencyRisk].Timeframe)
	assert.Equal(t, prediction.Timeframe1Month, byType[prediction.TypeHealthDeterioration].Timeframe)
	assert.Empty(t, f.publisher.published, "no score crossed the notification threshold")
}

func TestGeneratePredictions_DeteriorationTracksDecliningTrends(t *testing.T) {
	f := newFixture(t, 50, nil, nil)
	f.seedTrend(t, "mood_score", trend.CategoryMentalHealth, trend.DirectionDeclining, 10)
	f.seedTrend(t, "steps", trend.CategoryPhysicalHealth, trend.DirectionDeclining, 10)

	batch, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)

	var deterioration *prediction.HealthPrediction
	for _, p := range batch {
		if p.Type == prediction.TypeHealthDeterioration {
			deterioration = p
		}
	}
	require.NotNil(t, deterioration)
	// 0.6*50 + 40*(2/2)
	assert.InDelta(t, 70.0, deterioration.RiskScore, 1e-9)

	var names []string
	for _, factor := range deterioration.Factors {
		names = append(names, factor.Name)
	}
	assert.Contains(t, names, "mood_score")
	assert.Contains(t, names, "steps")
}

func TestGeneratePredictions_NotifiesOnHighScores(t *testing.T) {
	f := newFixture(t, 80, map[trend.Category]float64{
		trend.CategoryMentalHealth: 90,
	}, []assessment.Alert{{
		Type:     string(trend.CategoryMentalHealth),
		Message:  "mental health critical",
		Priority: assessment.PriorityCritical,
	}})

	batch, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)
	require.Len(t, batch, 4)

	priorities := make(map[string]events.Priority)
	for _, n := range f.publisher.published {
		priorities[n.Metadata["prediction_type"].(string)] = n.Priority
	}
	assert.Equal(t, events.PriorityCritical, priorities[string(prediction.TypeMentalHealthRisk)], "score 90 notifies at critical")
	assert.Equal(t, events.PriorityCritical, priorities[string(prediction.TypeEmergencyRisk)], "emergency risk notifies at critical")
}

func TestGeneratePredictions_NotificationPriorityByType(t *testing.T) {
	f := newFixture(t, 75, map[trend.Category]float64{
		trend.CategoryMentalHealth: 72,
		trend.CategoryMedication:   78,
	}, nil)

	batch, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)
	require.Len(t, batch, 4)

	priorities := make(map[string]events.Priority)
	for _, n := range f.publisher.published {
		priorities[n.Metadata["prediction_type"].(string)] = n.Priority
	}
	require.Len(t, priorities, 3, "deterioration at 45 stays below the notification threshold")
	assert.Equal(t, events.PriorityCritical, priorities[string(prediction.TypeEmergencyRisk)], "emergency risk is critical even at 75")
	assert.Equal(t, events.PriorityHigh, priorities[string(prediction.TypeMentalHealthRisk)], "mental health below 85 notifies at high")
	assert.Equal(t, events.PriorityMedium, priorities[string(prediction.TypeMedicationAdherence)], "medication adherence never exceeds medium")
}

func TestGeneratePredictions_TimeframeOverride(t *testing.T) {
	f := newFixture(t, 40, nil, nil)

	first, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)

	batch, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, prediction.Timeframe1Month, false)
	require.NoError(t, err)
	require.Len(t, batch, 4)
	assert.NotEqual(t, first[0].ID, batch[0].ID, "an explicit horizon regenerates inside the reuse window")
	for _, p := range batch {
		assert.Equal(t, prediction.Timeframe1Month, p.Timeframe)
		assert.Equal(t, p.CreatedAt.Add(prediction.Timeframe1Month.Duration()), p.ValidUntil)
	}

	t.Run("unknown timeframe", func(t *testing.T) {
		_, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "fortnight", false)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})
}

func TestGeneratePredictions_ReuseWindow(t *testing.T) {
	f := newFixture(t, 40, nil, nil)

	first, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	reused, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)
	require.Len(t, reused, 4)
	assert.Equal(t, first[0].ID, reused[0].ID, "inside the window the batch is reused")

	f.clock.Advance(7 * time.Hour)
	fresh, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, fresh[0].ID)

	// The superseded batch is retired but still queryable by ID.
	old, err := f.repo.GetByID(context.Background(), first[0].ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	active, err := f.svc.GetActivePredictions(context.Background(), f.subjectID)
	require.NoError(t, err)
	assert.Len(t, active, 4)
}

func TestGeneratePredictions_ForceBypassesReuse(t *testing.T) {
	f := newFixture(t, 40, nil, nil)

	first, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)

	forced, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", true)
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, forced[0].ID)
}

func TestGeneratePredictions_LinksToContributingTrends(t *testing.T) {
	f := newFixture(t, 40, map[trend.Category]float64{trend.CategoryMentalHealth: 55}, nil)
	f.seedTrend(t, "mood_score", trend.CategoryMentalHealth, trend.DirectionStable, 5)

	_, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)

	tr, err := f.trendRepo.GetBySubjectAndMetric(context.Background(), f.subjectID, "mood_score")
	require.NoError(t, err)
	// Mental health, emergency and deterioration all read this category.
	assert.Len(t, tr.PredictionIDs, 3)
}

func TestMarkOutcome(t *testing.T) {
	f := newFixture(t, 40, nil, nil)

	batch, err := f.svc.GeneratePredictions(context.Background(), f.subjectID, "", false)
	require.NoError(t, err)
	target := batch[0]

	p, err := f.svc.MarkOutcome(context.Background(), target.ID, prediction.OutcomeAccurate, "confirmed by review")
	require.NoError(t, err)
	assert.Equal(t, prediction.OutcomeAccurate, p.Outcome)
	assert.Equal(t, "confirmed by review", p.OutcomeNotes)

	stored, err := f.repo.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, prediction.OutcomeAccurate, stored.Outcome)

	t.Run("second write conflicts", func(t *testing.T) {
		_, err := f.svc.MarkOutcome(context.Background(), target.ID, prediction.OutcomeInaccurate, "")
		assert.ErrorIs(t, err, errors.ErrOutcomeAlreadySet)
	})

	t.Run("pending is not a terminal value", func(t *testing.T) {
		_, err := f.svc.MarkOutcome(context.Background(), batch[1].ID, prediction.OutcomePending, "")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("unknown prediction", func(t *testing.T) {
		_, err := f.svc.MarkOutcome(context.Background(), uuid.New(), prediction.OutcomeAccurate, "")
		assert.True(t, errors.IsNotFound(err))
	})
}
