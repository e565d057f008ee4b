package predictor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/prediction"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/cache"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/events"
	"github.com/vitalpath/health-analytics-backend/internal/metrics"
)

// DefaultReuseWindow is how long a prediction batch answers repeat
// generation requests.
const DefaultReuseWindow = 6 * time.Hour

// Risk scores at or above these thresholds trigger a notification.
const (
	notifyScore   = 70.0
	criticalScore = 85.0
)

// service implements the Service interface
type service struct {
	repo        Repository
	trendStore  TrendStore
	assessments AssessmentSource
	cache       cache.Cache
	publisher   events.Publisher
	registry    *metrics.Registry
	reuse       cache.ReusePolicy
	logger      *zap.Logger
}

// NewService creates a prediction generator. cache, publisher and registry
// may be nil.
func NewService(
	repo Repository,
	trendStore TrendStore,
	assessments AssessmentSource,
	c cache.Cache,
	publisher events.Publisher,
	registry *metrics.Registry,
	reuseWindow time.Duration,
	logger *zap.Logger,
) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reuseWindow <= 0 {
		reuseWindow = DefaultReuseWindow
	}
	return &service{
		repo:        repo,
		trendStore:  trendStore,
		assessments: assessments,
		cache:       c,
		publisher:   publisher,
		registry:    registry,
		reuse:       cache.ReusePolicy{TTL: reuseWindow},
		logger:      logger,
	}
}

func (s *service) GeneratePredictions(ctx context.Context, subjectID uuid.UUID, timeframe prediction.Timeframe, force bool) ([]*prediction.HealthPrediction, error) {
	if subjectID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	if timeframe != "" && !timeframe.Valid() {
		return nil, errors.NewValidationError("INVALID_TIMEFRAME", "unknown prediction timeframe")
	}

	now := clock.Now()

	// An explicit horizon always regenerates; the current batch may be on
	// different timeframes.
	if !force && timeframe == "" {
		if batch := s.findReusable(ctx, subjectID, now); batch != nil {
			return batch, nil
		}
	}

	a, err := s.assessments.GenerateAssessment(ctx, subjectID, assessment.TypeComprehensive, false)
	if err != nil {
		return nil, errors.Wrap(err, "failed to assess subject before predicting")
	}
	trendList, err := s.trendStore.ListBySubject(ctx, subjectID, true)
	if err != nil {
		return nil, err
	}

	if err := s.supersede(ctx, subjectID); err != nil {
		return nil, err
	}

	inputs := deriveInputs(a, trendList)
	batch := make([]*prediction.HealthPrediction, 0, len(prediction.AllTypes()))
	for _, typ := range prediction.AllTypes() {
		p, err := buildPrediction(subjectID, typ, timeframe, inputs)
		if err != nil {
			return nil, errors.NewInternalError("failed to build prediction").WithCause(err)
		}
		if err := s.repo.Save(ctx, p); err != nil {
			return nil, err
		}
		s.registry.RecordPredictions(ctx, 1, string(typ))
		if p.RiskScore >= notifyScore {
			s.notify(ctx, p)
		}
		batch = append(batch, p)
	}

	s.linkToTrends(ctx, trendList, batch)
	s.cacheBatch(ctx, subjectID, batch)

	s.logger.Info("prediction batch generated",
		zap.String("subject_id", subjectID.String()),
		zap.Int("count", len(batch)),
		zap.Float64("assessment_score", a.OverallRiskScore),
	)
	return batch, nil
}

func (s *service) GetActivePredictions(ctx context.Context, subjectID uuid.UUID) ([]*prediction.HealthPrediction, error) {
	if subjectID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	return s.repo.ListActiveBySubject(ctx, subjectID)
}

func (s *service) MarkOutcome(ctx context.Context, predictionID uuid.UUID, outcome prediction.Outcome, notes string) (*prediction.HealthPrediction, error) {
	if predictionID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}

	p, err := s.repo.GetByID(ctx, predictionID)
	if err != nil {
		return nil, err
	}

	if err := p.MarkOutcome(outcome, notes); err != nil {
		if p.Outcome != prediction.OutcomePending {
			return nil, errors.ErrOutcomeAlreadySet
		}
		return nil, errors.NewValidationError("INVALID_OUTCOME", err.Error())
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.registry.RecordOutcome(ctx, string(outcome))

	s.logger.Info("prediction outcome recorded",
		zap.String("prediction_id", predictionID.String()),
		zap.String("outcome", string(outcome)),
	)
	return p, nil
}

// findReusable returns the current batch when its newest member is still
// inside the reuse window.
func (s *service) findReusable(ctx context.Context, subjectID uuid.UUID, now time.Time) []*prediction.HealthPrediction {
	if s.cache != nil {
		var cached []*prediction.HealthPrediction
		if err := s.cache.GetJSON(ctx, cache.PredictionsKey(subjectID), &cached); err == nil && batchFresh(cached, s.reuse, now) {
			return cached
		}
	}

	active, err := s.repo.ListActiveBySubject(ctx, subjectID)
	if err != nil || !batchFresh(active, s.reuse, now) {
		return nil
	}
	return active
}

func batchFresh(batch []*prediction.HealthPrediction, reuse cache.ReusePolicy, now time.Time) bool {
	if len(batch) == 0 {
		return false
	}
	newest := batch[0].CreatedAt
	for _, p := range batch[1:] {
		if p.CreatedAt.After(newest) {
			newest = p.CreatedAt
		}
	}
	return reuse.Fresh(newest, now)
}

// supersede retires the previous batch. Outcomes stay recordable on
// deactivated predictions.
func (s *service) supersede(ctx context.Context, subjectID uuid.UUID) error {
	active, err := s.repo.ListActiveBySubject(ctx, subjectID)
	if err != nil {
		return err
	}
	for _, p := range active {
		p.Deactivate()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// linkToTrends records each prediction's ID on the trends of its input
// category. Link failures are logged and swallowed.
func (s *service) linkToTrends(ctx context.Context, trendList []*trend.Trend, batch []*prediction.HealthPrediction) {
	changed := make(map[uuid.UUID]*trend.Trend)
	for _, p := range batch {
		for _, t := range trendList {
			if categoryFeedsType(t.Category, p.Type) {
				t.AttachPrediction(p.ID)
				changed[t.ID] = t
			}
		}
	}
	for _, t := range changed {
		if err := s.trendStore.Save(ctx, t); err != nil {
			s.logger.Warn("failed to link prediction to trend",
				zap.String("metric", t.MetricName),
				zap.Error(err),
			)
		}
	}
}

func (s *service) cacheBatch(ctx context.Context, subjectID uuid.UUID, batch []*prediction.HealthPrediction) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, cache.PredictionsKey(subjectID), batch, s.reuse.TTL); err != nil {
		s.logger.Warn("failed to cache prediction batch", zap.Error(err))
	}
}

// notifyPriority ranks a prediction notification by its type. Emergency
// risk is always critical regardless of score, medication adherence never
// exceeds medium.
func notifyPriority(p *prediction.HealthPrediction) events.Priority {
	switch p.Type {
	case prediction.TypeEmergencyRisk:
		return events.PriorityCritical
	case prediction.TypeMedicationAdherence:
		return events.PriorityMedium
	case prediction.TypeMentalHealthRisk:
		if p.RiskScore >= criticalScore {
			return events.PriorityCritical
		}
		return events.PriorityHigh
	default:
		return events.PriorityHigh
	}
}

func (s *service) notify(ctx context.Context, p *prediction.HealthPrediction) {
	if s.publisher == nil {
		return
	}
	n := events.Notification{
		ID:        uuid.New(),
		SubjectID: p.SubjectID,
		Category:  "prediction",
		Message:   fmt.Sprintf("%s predicted at risk score %.0f over %s", p.Type, p.RiskScore, p.Timeframe),
		Channel:   "care_team",
		Priority:  notifyPriority(p),
		Metadata: map[string]interface{}{
			"prediction_id":   p.ID.String(),
			"prediction_type": string(p.Type),
		},
		EmittedAt: clock.Now(),
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.registry.RecordNotification(ctx, false)
		s.logger.Error("failed to publish prediction notification",
			zap.String("subject_id", p.SubjectID.String()),
			zap.Error(err),
		)
		return
	}
	s.registry.RecordNotification(ctx, true)
}
