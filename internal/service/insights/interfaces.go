package insights

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// Service projects a subject's trend graph into a human-readable summary.
// It is a pure read side: it writes nothing and never fails the caller.
type Service interface {
	// Summarize builds the summary over trends observed within the last
	// windowDays days; zero or negative means the full history.
	Summarize(ctx context.Context, subjectID uuid.UUID, windowDays int) *Summary
}

// TrendSource reads the subject's trends.
type TrendSource interface {
	ListBySubject(ctx context.Context, subjectID uuid.UUID, activeOnly bool) ([]*trend.Trend, error)
}

// AssessmentSource reads the latest stored assessment, if any.
type AssessmentSource interface {
	LatestByType(ctx context.Context, subjectID uuid.UUID, typ assessment.Type) (*assessment.RiskAssessment, error)
}

// Summary is the read-side projection over one subject.
type Summary struct {
	SubjectID   uuid.UUID `json:"subject_id"`
	Status      string    `json:"status"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalTrends    int `json:"total_trends"`
	ImprovingCount int `json:"improving_count"`
	DecliningCount int `json:"declining_count"`
	StableCount    int `json:"stable_count"`

	OverallRiskScore *float64 `json:"overall_risk_score,omitempty"`
	RiskLevel        string   `json:"risk_level,omitempty"`

	Highlights      []Highlight `json:"highlights"`
	Recommendations []string    `json:"recommendations"`
	Correlations    []string    `json:"correlations"`
}

// Highlight is one strongly moving metric worth surfacing.
type Highlight struct {
	MetricName       string  `json:"metric_name"`
	Direction        string  `json:"direction"`
	Strength         float64 `json:"strength"`
	ChangePercentage float64 `json:"change_percentage"`
	Message          string  `json:"message"`
}

// Summary status values.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)
