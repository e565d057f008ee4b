package risk

import (
	"time"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// Policy holds the tunable parts of risk aggregation: category weights,
// risk-level bands and the reuse window.
type Policy struct {
	// Weights per category; categories absent from a subject's data are
	// renormalized away rather than scored as zero risk.
	Weights map[trend.Category]float64

	// Risk-level band upper bounds. A score below ModerateFloor is low,
	// below HighFloor moderate, below CriticalFloor high, else critical.
	ModerateFloor float64
	HighFloor     float64
	CriticalFloor float64

	// Category score thresholds for alerting. A category at or above
	// CriticalScore escalates the whole assessment to critical.
	WarningScore  float64
	CriticalScore float64

	// ReuseWindow is how long a generated assessment answers repeat
	// requests.
	ReuseWindow time.Duration
}

// DefaultPolicy mirrors the clinically reviewed weighting: mental and
// physical health dominate, lifestyle and medication follow, social and
// environmental context round it out.
func DefaultPolicy() Policy {
	return Policy{
		Weights: map[trend.Category]float64{
			trend.CategoryMentalHealth:   0.25,
			trend.CategoryPhysicalHealth: 0.25,
			trend.CategoryLifestyle:      0.15,
			trend.CategoryMedication:     0.15,
			trend.CategorySocial:         0.10,
			trend.CategoryEnvironmental:  0.10,
		},
		ModerateFloor: 25,
		HighFloor:     50,
		CriticalFloor: 75,
		WarningScore:  70,
		CriticalScore: 85,
		ReuseWindow:   24 * time.Hour,
	}
}

// Level places an overall score in its risk band.
func (p Policy) Level(score float64) assessment.RiskLevel {
	switch {
	case score < p.ModerateFloor:
		return assessment.LevelLow
	case score < p.HighFloor:
		return assessment.LevelModerate
	case score < p.CriticalFloor:
		return assessment.LevelHigh
	default:
		return assessment.LevelCritical
	}
}

// Scope returns the categories an assessment type covers.
func (p Policy) Scope(typ assessment.Type) []trend.Category {
	switch typ {
	case assessment.TypeMentalHealth:
		return []trend.Category{trend.CategoryMentalHealth}
	case assessment.TypePhysicalHealth:
		return []trend.Category{trend.CategoryPhysicalHealth}
	case assessment.TypeMedication:
		return []trend.Category{trend.CategoryMedication}
	default:
		return trend.AllCategories()
	}
}

// scoreTrend maps one trend to a 0-100 risk contribution. The base comes
// from where the latest value sits against the target bands; the direction
// of travel nudges it up or down.
func scoreTrend(t *trend.Trend) float64 {
	var base float64
	switch t.CurrentStatus() {
	case trend.StatusCritical:
		base = 90
	case trend.StatusWarning:
		base = 60
	default:
		base = 15
	}

	switch t.Analytics.Direction {
	case trend.DirectionDeclining:
		base += 10 * t.Analytics.Strength
	case trend.DirectionImproving:
		base -= 10 * t.Analytics.Strength
	}

	if base < 0 {
		return 0
	}
	if base > 100 {
		return 100
	}
	return base
}
