package risk

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
	"github.com/vitalpath/health-analytics-backend/internal/service/trends"
)

// Service aggregates a subject's trends into weighted risk assessments.
type Service interface {
	// GenerateAssessment computes a fresh assessment, or returns the most
	// recent one when it is still inside the reuse window and force is
	// false.
	GenerateAssessment(ctx context.Context, subjectID uuid.UUID, typ assessment.Type, force bool) (*assessment.RiskAssessment, error)

	// RescheduleAssessment moves an assessment's next due time and, when
	// notes are given, replaces its reviewer notes.
	RescheduleAssessment(ctx context.Context, assessmentID uuid.UUID, nextDue time.Time, notes string) (*assessment.RiskAssessment, error)

	// GetLatestAssessment returns the newest stored assessment of the type
	// without computing anything.
	GetLatestAssessment(ctx context.Context, subjectID uuid.UUID, typ assessment.Type) (*assessment.RiskAssessment, error)

	// GetRiskTrend summarizes how the subject's overall risk moved over the
	// lookback window.
	GetRiskTrend(ctx context.Context, subjectID uuid.UUID, lookback time.Duration) (*RiskTrend, error)
}

// Repository persists assessments.
type Repository interface {
	Save(ctx context.Context, a *assessment.RiskAssessment) error
	Update(ctx context.Context, a *assessment.RiskAssessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*assessment.RiskAssessment, error)
	LatestByType(ctx context.Context, subjectID uuid.UUID, typ assessment.Type) (*assessment.RiskAssessment, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID, since time.Time) ([]*assessment.RiskAssessment, error)
}

// TrendSource reads the subject's trends to score.
type TrendSource interface {
	ListBySubject(ctx context.Context, subjectID uuid.UUID, activeOnly bool) ([]*trend.Trend, error)
}

// ObservationSink closes the feedback loop: each fresh comprehensive or
// critical assessment is written back into the trend store as a wellbeing
// observation.
type ObservationSink interface {
	AddObservation(ctx context.Context, req trends.ObservationRequest) (*trend.Trend, error)
}

// RiskTrend is the movement of overall risk over a lookback window.
type RiskTrend struct {
	SubjectID   uuid.UUID       `json:"subject_id"`
	Direction   trend.Direction `json:"direction"`
	Points      []RiskPoint     `json:"points"`
	FirstScore  float64         `json:"first_score"`
	LatestScore float64         `json:"latest_score"`
}

// RiskPoint is one assessment's contribution to the risk trend.
type RiskPoint struct {
	Score     float64              `json:"score"`
	Level     assessment.RiskLevel `json:"level"`
	CreatedAt time.Time            `json:"created_at"`
}
