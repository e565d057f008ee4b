package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/cache"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/events"
	"github.com/vitalpath/health-analytics-backend/internal/metrics"
	"github.com/vitalpath/health-analytics-backend/internal/service/trends"
)

// service implements the Service interface
type service struct {
	repo      Repository
	trendsSrc TrendSource
	sink      ObservationSink
	cache     cache.Cache
	publisher events.Publisher
	registry  *metrics.Registry
	policy    Policy
	reuse     cache.ReusePolicy
	logger    *zap.Logger
}

// NewService creates a risk aggregation service. sink, cache, publisher and
// registry may be nil; the service degrades to compute-only behavior.
func NewService(
	repo Repository,
	trendsSrc TrendSource,
	sink ObservationSink,
	c cache.Cache,
	publisher events.Publisher,
	registry *metrics.Registry,
	policy Policy,
	logger *zap.Logger,
) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Weights == nil {
		policy = DefaultPolicy()
	}
	return &service{
		repo:      repo,
		trendsSrc: trendsSrc,
		sink:      sink,
		cache:     c,
		publisher: publisher,
		registry:  registry,
		policy:    policy,
		reuse:     cache.ReusePolicy{TTL: policy.ReuseWindow},
		logger:    logger,
	}
}

func (s *service) GenerateAssessment(ctx context.Context, subjectID uuid.UUID, typ assessment.Type, force bool) (*assessment.RiskAssessment, error) {
	if subjectID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	if !typ.Valid() {
		return nil, errors.NewValidationError("INVALID_ASSESSMENT_TYPE", "unknown assessment type")
	}

	now := clock.Now()

	if !force {
		if reused := s.findReusable(ctx, subjectID, typ, now); reused != nil {
			s.registry.RecordAssessment(ctx, true, false)
			return reused, nil
		}
	}

	a, err := s.compute(ctx, subjectID, typ, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}
	s.cacheAssessment(ctx, a)
	s.registry.RecordAssessment(ctx, false, a.RiskLevel == assessment.LevelCritical)

	if a.IsCritical() {
		s.notifyCritical(ctx, a)
	}
	if typ == assessment.TypeComprehensive || a.IsCritical() {
		s.recordWellbeing(ctx, a, now)
	}

	s.logger.Info("risk assessment generated",
		zap.String("subject_id", subjectID.String()),
		zap.String("type", string(typ)),
		zap.Float64("overall_score", a.OverallRiskScore),
		zap.String("level", a.RiskLevel.String()),
		zap.Int("alerts", len(a.Alerts)),
	)
	return a, nil
}

func (s *service) RescheduleAssessment(ctx context.Context, assessmentID uuid.UUID, nextDue time.Time, notes string) (*assessment.RiskAssessment, error) {
	if assessmentID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	if !nextDue.After(clock.Now()) {
		return nil, errors.NewValidationError("INVALID_DUE_TIME", "next due time must be in the future")
	}

	a, err := s.repo.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	a.Reschedule(nextDue)
	if notes != "" {
		a.AnnotateNotes(notes)
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.cacheAssessment(ctx, a)

	s.logger.Info("assessment rescheduled",
		zap.String("assessment_id", assessmentID.String()),
		zap.Time("next_due", nextDue),
	)
	return a, nil
}

func (s *service) GetLatestAssessment(ctx context.Context, subjectID uuid.UUID, typ assessment.Type) (*assessment.RiskAssessment, error) {
	if subjectID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	if !typ.Valid() {
		return nil, errors.NewValidationError("INVALID_ASSESSMENT_TYPE", "unknown assessment type")
	}
	return s.repo.LatestByType(ctx, subjectID, typ)
}

func (s *service) GetRiskTrend(ctx context.Context, subjectID uuid.UUID, lookback time.Duration) (*RiskTrend, error) {
	if subjectID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}

	since := clock.Now().Add(-lookback)
	history, err := s.repo.ListBySubject(ctx, subjectID, since)
	if err != nil {
		return nil, err
	}

	rt := &RiskTrend{SubjectID: subjectID, Direction: trend.DirectionStable}
	for _, a := range history {
		rt.Points = append(rt.Points, RiskPoint{
			Score:     a.OverallRiskScore,
			Level:     a.RiskLevel,
			CreatedAt: a.CreatedAt,
		})
	}
	if len(rt.Points) == 0 {
		return rt, nil
	}

	rt.FirstScore = rt.Points[0].Score
	rt.LatestScore = rt.Points[len(rt.Points)-1].Score

	// Falling risk is improvement.
	const band = 5.0
	switch delta := rt.LatestScore - rt.FirstScore; {
	case delta <= -band:
		rt.Direction = trend.DirectionImproving
	case delta >= band:
		rt.Direction = trend.DirectionDeclining
	}
	return rt, nil
}

// findReusable checks the cache first, then the repository, for an
// assessment still inside the reuse window.
func (s *service) findReusable(ctx context.Context, subjectID uuid.UUID, typ assessment.Type, now time.Time) *assessment.RiskAssessment {
	if s.cache != nil {
		var cached assessment.RiskAssessment
		key := cache.AssessmentKey(subjectID, string(typ))
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil && s.reuse.Fresh(cached.CreatedAt, now) {
			return &cached
		}
	}

	latest, err := s.repo.LatestByType(ctx, subjectID, typ)
	if err != nil || !s.reuse.Fresh(latest.CreatedAt, now) {
		return nil
	}
	return latest
}

// compute scores the subject's active trends inside the type's category
// scope and folds them into one weighted assessment.
func (s *service) compute(ctx context.Context, subjectID uuid.UUID, typ assessment.Type, now time.Time) (*assessment.RiskAssessment, error) {
	all, err := s.trendsSrc.ListBySubject(ctx, subjectID, true)
	if err != nil {
		return nil, err
	}

	scope := make(map[trend.Category]bool)
	for _, c := range s.policy.Scope(typ) {
		scope[c] = true
	}

	categoryScores := make(map[trend.Category]float64)
	var completenessSum float64
	var scored int
	for _, t := range all {
		if !scope[t.Category] || len(t.DataPoints) == 0 {
			continue
		}
		score := scoreTrend(t)
		if existing, ok := categoryScores[t.Category]; !ok || score > existing {
			categoryScores[t.Category] = score
		}
		completenessSum += t.Quality.Completeness
		scored++
	}

	if scored == 0 {
		a, err := assessment.New(subjectID, typ, 0, assessment.LevelLow, nil, nil, 0, now.Add(s.policy.ReuseWindow))
		if err != nil {
			return nil, errors.NewInternalError("failed to build assessment").WithCause(err)
		}
		a.AnnotateNotes("insufficient data: no active trends in scope")
		return a, nil
	}

	var weightSum, weighted float64
	for category, score := range categoryScores {
		w := s.policy.Weights[category]
		weightSum += w
		weighted += w * score
	}
	overall := 0.0
	if weightSum > 0 {
		overall = weighted / weightSum
	}

	level := s.policy.Level(overall)
	alerts := s.buildAlerts(categoryScores)
	for _, alert := range alerts {
		if alert.Priority == assessment.PriorityCritical {
			level = assessment.LevelCritical
			break
		}
	}

	confidence := completenessSum / float64(scored)
	if confidence > 1 {
		confidence = 1
	}

	a, err := assessment.New(subjectID, typ, overall, level, categoryScores, alerts, confidence, now.Add(s.policy.ReuseWindow))
	if err != nil {
		return nil, errors.NewInternalError("failed to build assessment").WithCause(err)
	}
	return a, nil
}

func (s *service) buildAlerts(categoryScores map[trend.Category]float64) []assessment.Alert {
	var alerts []assessment.Alert
	for _, category := range trend.AllCategories() {
		score, ok := categoryScores[category]
		if !ok {
			continue
		}
		switch {
		case score >= s.policy.CriticalScore:
			alerts = append(alerts, assessment.Alert{
				Type:     string(category),
				Message:  fmt.Sprintf("%s risk score %.0f requires immediate attention", category, score),
				Priority: assessment.PriorityCritical,
			})
		case score >= s.policy.WarningScore:
			alerts = append(alerts, assessment.Alert{
				Type:     string(category),
				Message:  fmt.Sprintf("%s risk score %.0f is elevated", category, score),
				Priority: assessment.PriorityHigh,
			})
		}
	}
	return alerts
}

func (s *service) cacheAssessment(ctx context.Context, a *assessment.RiskAssessment) {
	if s.cache == nil {
		return
	}
	key := cache.AssessmentKey(a.SubjectID, string(a.Type))
	if err := s.cache.SetJSON(ctx, key, a, s.reuse.TTL); err != nil {
		s.logger.Warn("failed to cache assessment", zap.Error(err))
	}
}

// notifyCritical publishes a critical-risk notification. Publish failures
// are logged and swallowed; assessment generation never fails on the
// notification path.
func (s *service) notifyCritical(ctx context.Context, a *assessment.RiskAssessment) {
	if s.publisher == nil {
		return
	}
	n := events.Notification{
		ID:        uuid.New(),
		SubjectID: a.SubjectID,
		Category:  "risk_assessment",
		Message:   fmt.Sprintf("critical risk level: overall score %.0f", a.OverallRiskScore),
		Channel:   "care_team",
		Priority:  events.PriorityCritical,
		Metadata: map[string]interface{}{
			"assessment_id":   a.ID.String(),
			"assessment_type": string(a.Type),
		},
		EmittedAt: clock.Now(),
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.registry.RecordNotification(ctx, false)
		s.logger.Error("failed to publish critical risk notification",
			zap.String("subject_id", a.SubjectID.String()),
			zap.Error(err),
		)
		return
	}
	s.registry.RecordNotification(ctx, true)
}

// recordWellbeing writes the inverted overall score back into the trend
// store so wellbeing itself becomes a trackable metric. Failures are logged
// and swallowed.
func (s *service) recordWellbeing(ctx context.Context, a *assessment.RiskAssessment, now time.Time) {
	if s.sink == nil {
		return
	}
	_, err := s.sink.AddObservation(ctx, trends.ObservationRequest{
		SubjectID:  a.SubjectID,
		MetricName: "wellbeing_score",
		Category:   trend.CategoryMentalHealth,
		Value:      100 - a.OverallRiskScore,
		Timestamp:  now,
		Source:     trend.SourceRiskAssessment,
		Context:    map[string]interface{}{"assessment_id": a.ID.String()},
	})
	if err != nil {
		s.logger.Warn("failed to record wellbeing observation",
			zap.String("subject_id", a.SubjectID.String()),
			zap.Error(err),
		)
	}
}
