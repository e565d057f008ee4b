package trends

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// Service manages the per-subject metric trend store: ingestion of
// observations, the derived analytics that follow every append, and
// lifecycle of the trends themselves.
type Service interface {
	// AddObservation appends a data point to the subject's trend for the
	// metric, creating the trend on first sight, then recomputes analytics,
	// quality, cyclical patterns and cross-metric correlations.
	AddObservation(ctx context.Context, req ObservationRequest) (*trend.Trend, error)

	// GetTrends returns the subject's trends matching the filter.
	GetTrends(ctx context.Context, subjectID uuid.UUID, filter TrendFilter) ([]*trend.Trend, error)

	// GetTrend returns one trend by subject and metric name.
	GetTrend(ctx context.Context, subjectID uuid.UUID, metricName string) (*trend.Trend, error)

	// DeactivateTrend excludes a trend from analysis without deleting its
	// history.
	DeactivateTrend(ctx context.Context, subjectID uuid.UUID, metricName string) error
}

// Repository persists trends.
type Repository interface {
	Save(ctx context.Context, t *trend.Trend) error
	GetBySubjectAndMetric(ctx context.Context, subjectID uuid.UUID, metricName string) (*trend.Trend, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID, activeOnly bool) ([]*trend.Trend, error)
}

// TargetResolver supplies the ideal/warning/critical ranges for a metric,
// or nil when the metric has no configured targets.
type TargetResolver interface {
	TargetsFor(metricName string) *trend.Targets
}

// ObservationRequest is one incoming data point for a subject's metric.
type ObservationRequest struct {
	SubjectID  uuid.UUID              `json:"subject_id" validate:"required"`
	MetricName string                 `json:"metric_name" validate:"required"`
	Category   trend.Category         `json:"category" validate:"required"`
	Value      float64                `json:"value"`
	Timestamp  time.Time              `json:"timestamp"`
	Source     trend.Source           `json:"source"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// TrendFilter narrows GetTrends results.
type TrendFilter struct {
	Category   *trend.Category
	ActiveOnly bool
}
