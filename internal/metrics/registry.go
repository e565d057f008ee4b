package metrics

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the analytics engine
type Registry struct {
	meter metric.Meter

	// Ingestion
	ObservationsIngested       metric.Int64Counter
	AnalyticsRecomputeDuration metric.Float64Histogram
	ActiveTrends               metric.Int64ObservableGauge

	// Risk
	AssessmentsGenerated metric.Int64Counter
	AssessmentsReused    metric.Int64Counter
	CriticalAssessments  metric.Int64Counter

	// Predictions
	PredictionsGenerated metric.Int64Counter
	OutcomesRecorded     metric.Int64Counter

	// Notifications
	NotificationsPublished metric.Int64Counter
	NotificationFailures   metric.Int64Counter

	// State for observable metrics
	mu           sync.RWMutex
	activeTrends int64
}

// NewRegistry creates and registers all metrics instruments
func NewRegistry() (*Registry, error) {
	meter := otel.Meter("health-analytics-backend")

	r := &Registry{meter: meter}

	var err error

	if r.ObservationsIngested, err = meter.Int64Counter(
		"observations_ingested_total",
		metric.WithDescription("Data points appended to trends"),
	); err != nil {
		return nil, fmt.Errorf("creating observations counter: %w", err)
	}

	if r.AnalyticsRecomputeDuration, err = meter.Float64Histogram(
		"analytics_recompute_duration_seconds",
		metric.WithDescription("Time spent recomputing trend analytics after an append"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating recompute histogram: %w", err)
	}

	if r.AssessmentsGenerated, err = meter.Int64Counter(
		"risk_assessments_generated_total",
		metric.WithDescription("Risk assessments computed fresh"),
	); err != nil {
		return nil, fmt.Errorf("creating assessments counter: %w", err)
	}

	if r.AssessmentsReused, err = meter.Int64Counter(
		"risk_assessments_reused_total",
		metric.WithDescription("Assessment requests served from the reuse window"),
	); err != nil {
		return nil, fmt.Errorf("creating reuse counter: %w", err)
	}

	if r.CriticalAssessments, err = meter.Int64Counter(
		"risk_assessments_critical_total",
		metric.WithDescription("Assessments that produced a critical risk level"),
	); err != nil {
		return nil, fmt.Errorf("creating critical counter: %w", err)
	}

	if r.PredictionsGenerated, err = meter.Int64Counter(
		"predictions_generated_total",
		metric.WithDescription("Health predictions created"),
	); err != nil {
		return nil, fmt.Errorf("creating predictions counter: %w", err)
	}

	if r.OutcomesRecorded, err = meter.Int64Counter(
		"prediction_outcomes_recorded_total",
		metric.WithDescription("Prediction outcome validations"),
	); err != nil {
		return nil, fmt.Errorf("creating outcomes counter: %w", err)
	}

	if r.NotificationsPublished, err = meter.Int64Counter(
		"notifications_published_total",
		metric.WithDescription("Outbound notification events published"),
	); err != nil {
		return nil, fmt.Errorf("creating notifications counter: %w", err)
	}

	if r.NotificationFailures, err = meter.Int64Counter(
		"notification_failures_total",
		metric.WithDescription("Notification publishes that failed and were swallowed"),
	); err != nil {
		return nil, fmt.Errorf("creating notification failures counter: %w", err)
	}

	if r.ActiveTrends, err = meter.Int64ObservableGauge(
		"active_trends",
		metric.WithDescription("Active trends across all subjects"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.activeTrends)
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("creating active trends gauge: %w", err)
	}

	return r, nil
}

// AddActiveTrends moves the state behind the active trends gauge
func (r *Registry) AddActiveTrends(delta int64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.activeTrends += delta
	r.mu.Unlock()
}

// RecordObservation increments the ingestion counter with metric labels
func (r *Registry) RecordObservation(ctx context.Context, metricName, category string) {
	if r == nil {
		return
	}
	r.ObservationsIngested.Add(ctx, 1, metric.WithAttributes(
		attribute.String("metric", metricName),
		attribute.String("category", category),
	))
}

// RecordRecompute records analytics recompute latency
func (r *Registry) RecordRecompute(ctx context.Context, seconds float64) {
	if r == nil {
		return
	}
	r.AnalyticsRecomputeDuration.Record(ctx, seconds)
}

// RecordAssessment counts one assessment request, split into fresh and
// reused, and tracks critical outcomes separately
func (r *Registry) RecordAssessment(ctx context.Context, reused, critical bool) {
	if r == nil {
		return
	}
	if reused {
		r.AssessmentsReused.Add(ctx, 1)
		return
	}
	r.AssessmentsGenerated.Add(ctx, 1)
	if critical {
		r.CriticalAssessments.Add(ctx, 1)
	}
}

// RecordPredictions counts freshly generated predictions
func (r *Registry) RecordPredictions(ctx context.Context, n int64, predictionType string) {
	if r == nil {
		return
	}
	r.PredictionsGenerated.Add(ctx, n, metric.WithAttributes(
		attribute.String("type", predictionType),
	))
}

// RecordOutcome counts one prediction outcome validation
func (r *Registry) RecordOutcome(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.OutcomesRecorded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordNotification counts one publish attempt by result
func (r *Registry) RecordNotification(ctx context.Context, ok bool) {
	if r == nil {
		return
	}
	if ok {
		r.NotificationsPublished.Add(ctx, 1)
	} else {
		r.NotificationFailures.Add(ctx, 1)
	}
}
