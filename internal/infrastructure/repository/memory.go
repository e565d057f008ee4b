package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/prediction"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// In-memory repositories, logically partitioned by subject. They back the
// engine when no database is configured and every service-level test.
// Writes store deep copies and reads return deep copies, so the store never
// aliases caller memory and concurrent readers never observe a mutation.

// MemoryTrendRepository stores trends keyed by (subject, metric).
type MemoryTrendRepository struct {
	mu     sync.RWMutex
	trends map[uuid.UUID]map[string]*trend.Trend
}

func NewMemoryTrendRepository() *MemoryTrendRepository {
	return &MemoryTrendRepository{
		trends: make(map[uuid.UUID]map[string]*trend.Trend),
	}
}

func (r *MemoryTrendRepository) Save(_ context.Context, t *trend.Trend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byMetric, ok := r.trends[t.SubjectID]
	if !ok {
		byMetric = make(map[string]*trend.Trend)
		r.trends[t.SubjectID] = byMetric
	}
	byMetric[metricKey(t.MetricName)] = t.Clone()
	return nil
}

func (r *MemoryTrendRepository) GetBySubjectAndMetric(_ context.Context, subjectID uuid.UUID, metricName string) (*trend.Trend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if byMetric, ok := r.trends[subjectID]; ok {
		if t, ok := byMetric[metricKey(metricName)]; ok {
			return t.Clone(), nil
		}
	}
	return nil, errors.ErrTrendNotFound
}

func (r *MemoryTrendRepository) ListBySubject(_ context.Context, subjectID uuid.UUID, activeOnly bool) ([]*trend.Trend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byMetric := r.trends[subjectID]
	out := make([]*trend.Trend, 0, len(byMetric))
	for _, t := range byMetric {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MetricName < out[j].MetricName })
	return out, nil
}

// MemoryAssessmentRepository stores assessments per subject, newest first.
type MemoryAssessmentRepository struct {
	mu          sync.RWMutex
	assessments map[uuid.UUID][]*assessment.RiskAssessment
}

func NewMemoryAssessmentRepository() *MemoryAssessmentRepository {
	return &MemoryAssessmentRepository{
		assessments: make(map[uuid.UUID][]*assessment.RiskAssessment),
	}
}

func (r *MemoryAssessmentRepository) Save(_ context.Context, a *assessment.RiskAssessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments[a.SubjectID] = append(r.assessments[a.SubjectID], a.Clone())
	return nil
}

func (r *MemoryAssessmentRepository) Update(_ context.Context, a *assessment.RiskAssessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.assessments[a.SubjectID] {
		if existing.ID == a.ID {
			r.assessments[a.SubjectID][i] = a.Clone()
			return nil
		}
	}
	return errors.ErrAssessmentNotFound
}

func (r *MemoryAssessmentRepository) GetByID(_ context.Context, id uuid.UUID) (*assessment.RiskAssessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, list := range r.assessments {
		for _, a := range list {
			if a.ID == id {
				return a.Clone(), nil
			}
		}
	}
	return nil, errors.ErrAssessmentNotFound
}

func (r *MemoryAssessmentRepository) LatestByType(_ context.Context, subjectID uuid.UUID, typ assessment.Type) (*assessment.RiskAssessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *assessment.RiskAssessment
	for _, a := range r.assessments[subjectID] {
		if a.Type != typ {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, errors.ErrAssessmentNotFound
	}
	return latest.Clone(), nil
}

func (r *MemoryAssessmentRepository) ListBySubject(_ context.Context, subjectID uuid.UUID, since time.Time) ([]*assessment.RiskAssessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*assessment.RiskAssessment
	for _, a := range r.assessments[subjectID] {
		if a.CreatedAt.Before(since) {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemoryPredictionRepository stores predictions by id with a subject index.
type MemoryPredictionRepository struct {
	mu          sync.RWMutex
	predictions map[uuid.UUID]*prediction.HealthPrediction
	bySubject   map[uuid.UUID][]uuid.UUID
}

func NewMemoryPredictionRepository() *MemoryPredictionRepository {
	return &MemoryPredictionRepository{
		predictions: make(map[uuid.UUID]*prediction.HealthPrediction),
		bySubject:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *MemoryPredictionRepository) Save(_ context.Context, p *prediction.HealthPrediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.predictions[p.ID]; !exists {
		r.bySubject[p.SubjectID] = append(r.bySubject[p.SubjectID], p.ID)
	}
	r.predictions[p.ID] = p.Clone()
	return nil
}

func (r *MemoryPredictionRepository) Update(_ context.Context, p *prediction.HealthPrediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.predictions[p.ID]; !exists {
		return errors.ErrPredictionNotFound
	}
	r.predictions[p.ID] = p.Clone()
	return nil
}

func (r *MemoryPredictionRepository) GetByID(_ context.Context, id uuid.UUID) (*prediction.HealthPrediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predictions[id]
	if !ok {
		return nil, errors.ErrPredictionNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryPredictionRepository) ListActiveBySubject(_ context.Context, subjectID uuid.UUID) ([]*prediction.HealthPrediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*prediction.HealthPrediction
	for _, id := range r.bySubject[subjectID] {
		p := r.predictions[id]
		if p != nil && p.IsActive {
			out = append(out, p.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func metricKey(metricName string) string {
	return strings.ToLower(strings.TrimSpace(metricName))
}
