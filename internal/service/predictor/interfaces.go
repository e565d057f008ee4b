package predictor

import (
	"context"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/prediction"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// Service generates forward-looking health predictions from a subject's
// trends and latest risk assessment, and validates them after the fact.
type Service interface {
	// GeneratePredictions produces one prediction per type. timeframe, when
	// set, replaces every type's default horizon. A fresh batch supersedes
	// the previous one; inside the reuse window the current batch answers
	// unless force or a timeframe is given.
	GeneratePredictions(ctx context.Context, subjectID uuid.UUID, timeframe prediction.Timeframe, force bool) ([]*prediction.HealthPrediction, error)

	// GetActivePredictions returns the subject's current batch.
	GetActivePredictions(ctx context.Context, subjectID uuid.UUID) ([]*prediction.HealthPrediction, error)

	// MarkOutcome records the validated outcome of a prediction, once.
	MarkOutcome(ctx context.Context, predictionID uuid.UUID, outcome prediction.Outcome, notes string) (*prediction.HealthPrediction, error)
}

// Repository persists predictions.
type Repository interface {
	Save(ctx context.Context, p *prediction.HealthPrediction) error
	Update(ctx context.Context, p *prediction.HealthPrediction) error
	GetByID(ctx context.Context, id uuid.UUID) (*prediction.HealthPrediction, error)
	ListActiveBySubject(ctx context.Context, subjectID uuid.UUID) ([]*prediction.HealthPrediction, error)
}

// TrendStore reads the subject's trends and links generated predictions
// back onto them.
type TrendStore interface {
	ListBySubject(ctx context.Context, subjectID uuid.UUID, activeOnly bool) ([]*trend.Trend, error)
	Save(ctx context.Context, t *trend.Trend) error
}

// AssessmentSource supplies the risk assessment a batch derives from.
type AssessmentSource interface {
	GenerateAssessment(ctx context.Context, subjectID uuid.UUID, typ assessment.Type, force bool) (*assessment.RiskAssessment, error)
}
