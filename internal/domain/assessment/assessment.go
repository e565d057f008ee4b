package assessment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// Type identifies the scope of a risk assessment.
type Type string

const (
	TypeComprehensive  Type = "comprehensive"
	TypeMentalHealth   Type = "mental_health"
	TypePhysicalHealth Type = "physical_health"
	TypeMedication     Type = "medication"
)

func (t Type) Valid() bool {
	switch t {
	case TypeComprehensive, TypeMentalHealth, TypePhysicalHealth, TypeMedication:
		return true
	default:
		return false
	}
}

// RiskLevel classifies an overall risk score.
type RiskLevel int

const (
	LevelLow RiskLevel = iota
	LevelModerate
	LevelHigh
	LevelCritical
)

func (l RiskLevel) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelModerate:
		return "moderate"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Risk levels serialize by name so API payloads and cached documents stay
// categorical; the relational column keeps the ordinal form.
func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "low":
		*l = LevelLow
	case "moderate":
		*l = LevelModerate
	case "high":
		*l = LevelHigh
	case "critical":
		*l = LevelCritical
	default:
		return fmt.Errorf("unknown risk level %q", s)
	}
	return nil
}

// AlertPriority ranks alerts for the notification collaborator.
type AlertPriority int

const (
	PriorityLow AlertPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p AlertPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (p AlertPriority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *AlertPriority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "low":
		*p = PriorityLow
	case "medium":
		*p = PriorityMedium
	case "high":
		*p = PriorityHigh
	case "critical":
		*p = PriorityCritical
	default:
		return fmt.Errorf("unknown alert priority %q", s)
	}
	return nil
}

// Alert is one categorical finding attached to an assessment.
type Alert struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Priority AlertPriority `json:"priority"`
}

// RiskAssessment is a point-in-time composite risk score for a subject.
// Immutable once created except for the narrow allow-list mutations
// Reschedule and AnnotateNotes.
type RiskAssessment struct {
	ID               uuid.UUID                  `json:"id"`
	SubjectID        uuid.UUID                  `json:"subject_id"`
	Type             Type                       `json:"assessment_type"`
	OverallRiskScore float64                    `json:"overall_risk_score"`
	RiskLevel        RiskLevel                  `json:"risk_level"`
	CategoryScores   map[trend.Category]float64 `json:"category_scores"`
	Alerts           []Alert                    `json:"alerts"`
	Confidence       float64                    `json:"confidence"`
	NextDue          time.Time                  `json:"next_assessment_due"`
	Notes            string                     `json:"notes,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// New builds a validated assessment.
func New(subjectID uuid.UUID, typ Type, overall float64, level RiskLevel,
	categoryScores map[trend.Category]float64, alerts []Alert,
	confidence float64, nextDue time.Time) (*RiskAssessment, error) {

	if subjectID == uuid.Nil {
		return nil, fmt.Errorf("subject ID cannot be nil")
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid assessment type %q", typ)
	}
	if overall < 0 || overall > 100 {
		return nil, fmt.Errorf("overall risk score %.2f outside [0,100]", overall)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence %.2f outside [0,1]", confidence)
	}
	for cat, score := range categoryScores {
		if !cat.Valid() {
			return nil, fmt.Errorf("invalid category %q", cat)
		}
		if score < 0 || score > 100 {
			return nil, fmt.Errorf("category %s score %.2f outside [0,100]", cat, score)
		}
	}

	return &RiskAssessment{
		ID:               uuid.New(),
		SubjectID:        subjectID,
		Type:             typ,
		OverallRiskScore: overall,
		RiskLevel:        level,
		CategoryScores:   categoryScores,
		Alerts:           alerts,
		Confidence:       confidence,
		NextDue:          nextDue,
		CreatedAt:        clock.Now(),
	}, nil
}

// IsCritical reports whether the assessment must be surfaced to the
// notification collaborator.
func (r *RiskAssessment) IsCritical() bool {
	if r.RiskLevel == LevelCritical {
		return true
	}
	for _, a := range r.Alerts {
		if a.Priority == PriorityCritical {
			return true
		}
	}
	return false
}

// Reschedule moves the next assessment due time.
func (r *RiskAssessment) Reschedule(due time.Time) {
	r.NextDue = due
}

// AnnotateNotes attaches reviewer notes.
func (r *RiskAssessment) AnnotateNotes(notes string) {
	r.Notes = notes
}

// Clone returns a deep copy sharing no maps or slices with the original.
func (r *RiskAssessment) Clone() *RiskAssessment {
	dup := *r
	if r.CategoryScores != nil {
		dup.CategoryScores = make(map[trend.Category]float64, len(r.CategoryScores))
		for category, score := range r.CategoryScores {
			dup.CategoryScores[category] = score
		}
	}
	dup.Alerts = append([]Alert(nil), r.Alerts...)
	return &dup
}
