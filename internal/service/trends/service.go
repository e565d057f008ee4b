package trends

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
	"github.com/vitalpath/health-analytics-backend/internal/metrics"
	"github.com/vitalpath/health-analytics-backend/internal/service/analytics"
)

// service implements the Service interface
type service struct {
	repo     Repository
	targets  TargetResolver
	registry *metrics.Registry
	logger   *zap.Logger

	// Per-subject write serialization. Appends for different subjects run
	// concurrently; appends for the same subject are ordered.
	mu       sync.Mutex
	subjects map[uuid.UUID]*sync.Mutex
}

// NewService creates a trend store service. targets and registry may be nil.
func NewService(repo Repository, targets TargetResolver, registry *metrics.Registry, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:     repo,
		targets:  targets,
		registry: registry,
		logger:   logger,
		subjects: make(map[uuid.UUID]*sync.Mutex),
	}
}

// AddObservation appends a data point and recomputes every derived
// projection of the subject's trend graph before persisting.
func (s *service) AddObservation(ctx context.Context, req ObservationRequest) (*trend.Trend, error) {
	if err := s.normalize(&req); err != nil {
		return nil, err
	}

	lock := s.subjectLock(req.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.getOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}
	created := len(t.DataPoints) == 0

	if err := t.AppendDataPoint(trend.DataPoint{
		Value:     req.Value,
		Timestamp: req.Timestamp,
		Source:    req.Source,
		Context:   req.Context,
	}); err != nil {
		return nil, errors.NewValidationError("INVALID_DATA_POINT", err.Error())
	}

	start := time.Now()
	s.recompute(t)

	others, err := s.correlate(ctx, t)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	for _, other := range others {
		if err := s.repo.Save(ctx, other); err != nil {
			return nil, err
		}
	}

	s.registry.RecordObservation(ctx, t.MetricName, string(t.Category))
	s.registry.RecordRecompute(ctx, time.Since(start).Seconds())
	if created {
		s.registry.AddActiveTrends(1)
	}

	s.logger.Debug("observation appended",
		zap.String("subject_id", req.SubjectID.String()),
		zap.String("metric", t.MetricName),
		zap.Int("points", len(t.DataPoints)),
		zap.String("direction", t.Analytics.Direction.String()),
	)

	return t, nil
}

func (s *service) GetTrends(ctx context.Context, subjectID uuid.UUID, filter TrendFilter) ([]*trend.Trend, error) {
	if subjectID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}

	all, err := s.repo.ListBySubject(ctx, subjectID, filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	if filter.Category == nil {
		return all, nil
	}

	out := make([]*trend.Trend, 0, len(all))
	for _, t := range all {
		if t.Category == *filter.Category {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *service) GetTrend(ctx context.Context, subjectID uuid.UUID, metricName string) (*trend.Trend, error) {
	if subjectID == uuid.Nil || strings.TrimSpace(metricName) == "" {
		return nil, errors.ErrInvalidInput
	}
	return s.repo.GetBySubjectAndMetric(ctx, subjectID, metricName)
}

func (s *service) DeactivateTrend(ctx context.Context, subjectID uuid.UUID, metricName string) error {
	if subjectID == uuid.Nil || strings.TrimSpace(metricName) == "" {
		return errors.ErrInvalidInput
	}

	lock := s.subjectLock(subjectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.repo.GetBySubjectAndMetric(ctx, subjectID, metricName)
	if err != nil {
		return err
	}
	wasActive := t.IsActive
	t.Deactivate()
	if err := s.repo.Save(ctx, t); err != nil {
		return err
	}
	if wasActive {
		s.registry.AddActiveTrends(-1)
	}
	return nil
}

func (s *service) normalize(req *ObservationRequest) error {
	if req.SubjectID == uuid.Nil {
		return errors.NewValidationError("INVALID_SUBJECT", "subject ID is required")
	}
	req.MetricName = strings.ToLower(strings.TrimSpace(req.MetricName))
	if req.MetricName == "" {
		return errors.NewValidationError("INVALID_METRIC", "metric name is required")
	}
	if !req.Category.Valid() {
		return errors.NewValidationError("INVALID_CATEGORY", "unknown metric category")
	}
	if math.IsNaN(req.Value) || math.IsInf(req.Value, 0) {
		return errors.NewValidationError("INVALID_VALUE", "value must be finite")
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	if req.Source == "" {
		req.Source = trend.SourceManual
	}
	if !req.Source.Valid() {
		return errors.NewValidationError("INVALID_SOURCE", "unknown observation source")
	}
	return nil
}

func (s *service) getOrCreate(ctx context.Context, req ObservationRequest) (*trend.Trend, error) {
	t, err := s.repo.GetBySubjectAndMetric(ctx, req.SubjectID, req.MetricName)
	if err == nil {
		return t, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	var targets *trend.Targets
	if s.targets != nil {
		targets = s.targets.TargetsFor(req.MetricName)
	}
	t, derr := trend.NewTrend(req.SubjectID, req.MetricName, req.Category, trend.TimeframeDaily, targets)
	if derr != nil {
		return nil, errors.NewValidationError("INVALID_TREND", derr.Error())
	}
	return t, nil
}

// recompute refreshes analytics, quality and the weekly cycle test.
func (s *service) recompute(t *trend.Trend) {
	result := analytics.Calculate(t.DataPoints, t.Targets)
	t.Analytics = trend.Analytics{
		CurrentValue:     result.CurrentValue,
		Direction:        result.Direction,
		Strength:         result.Strength,
		ChangePercentage: result.ChangePercentage,
		ComputedAt:       time.Now().UTC(),
	}
	t.Quality = analytics.Quality(t.DataPoints)

	if len(t.DataPoints) >= analytics.MinPatternPoints {
		cycle := analytics.DetectCycle(t.Values(), analytics.WeeklyLag)
		t.SetPattern(trend.PatternEntry{
			Kind:       "weekly_cycle",
			Lag:        analytics.WeeklyLag,
			Detected:   cycle.Detected,
			Confidence: cycle.Confidence,
			DetectedAt: time.Now().UTC(),
		})
	}
}

// correlate refreshes the pairwise correlations between the target trend
// and the subject's other active trends, mirroring each persisted entry on
// the counterpart. Returns the counterparts that changed.
func (s *service) correlate(ctx context.Context, target *trend.Trend) ([]*trend.Trend, error) {
	if len(target.DataPoints) < analytics.MinCorrelationPoints {
		return nil, nil
	}

	candidates, err := s.repo.ListBySubject(ctx, target.SubjectID, true)
	if err != nil {
		return nil, err
	}

	var changed []*trend.Trend
	for _, candidate := range candidates {
		if candidate.ID == target.ID {
			continue
		}
		if len(candidate.DataPoints) < analytics.MinCorrelationPoints {
			continue
		}

		entry, persist := analytics.Correlate(target, candidate)
		if persist {
			target.SetCorrelation(entry)
			candidate.SetCorrelation(trend.CorrelationEntry{
				MetricName:  target.MetricName,
				Coefficient: entry.Coefficient,
				Strength:    entry.Strength,
				Significant: entry.Significant,
			})
		} else {
			target.RemoveCorrelation(candidate.MetricName)
			candidate.RemoveCorrelation(target.MetricName)
		}
		changed = append(changed, candidate)
	}
	return changed, nil
}

func (s *service) subjectLock(subjectID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.subjects[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		s.subjects[subjectID] = lock
	}
	return lock
}
