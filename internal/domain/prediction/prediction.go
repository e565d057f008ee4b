package prediction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies what a prediction forecasts.
type Type string

const (
	TypeMentalHealthRisk    Type = "mental_health_risk"
	TypeMedicationAdherence Type = "medication_adherence"
	TypeEmergencyRisk       Type = "emergency_risk"
	TypeHealthDeterioration Type = "health_deterioration"
)

// AllTypes lists every prediction type emitted per generation batch.
func AllTypes() []Type {
	return []Type{
		TypeMentalHealthRisk,
		TypeMedicationAdherence,
		TypeEmergencyRisk,
		TypeHealthDeterioration,
	}
}

func (t Type) Valid() bool {
	switch t {
	case TypeMentalHealthRisk, TypeMedicationAdherence, TypeEmergencyRisk, TypeHealthDeterioration:
		return true
	default:
		return false
	}
}

// Timeframe bounds how far forward a prediction looks.
type Timeframe string

const (
	Timeframe1Day    Timeframe = "1_day"
	Timeframe3Days   Timeframe = "3_days"
	Timeframe1Week   Timeframe = "1_week"
	Timeframe2Weeks  Timeframe = "2_weeks"
	Timeframe1Month  Timeframe = "1_month"
	Timeframe3Months Timeframe = "3_months"
)

// Duration maps a timeframe to its validity window.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe1Day:
		return 24 * time.Hour
	case Timeframe3Days:
		return 3 * 24 * time.Hour
	case Timeframe1Week:
		return 7 * 24 * time.Hour
	case Timeframe2Weeks:
		return 14 * 24 * time.Hour
	case Timeframe1Month:
		return 30 * 24 * time.Hour
	case Timeframe3Months:
		return 90 * 24 * time.Hour
	default:
		return 0
	}
}

func (t Timeframe) Valid() bool {
	return t.Duration() > 0
}

// Outcome is the validated result of a prediction after its window closed.
type Outcome string

const (
	OutcomePending           Outcome = "pending"
	OutcomeAccurate          Outcome = "accurate"
	OutcomePartiallyAccurate Outcome = "partially_accurate"
	OutcomeInaccurate        Outcome = "inaccurate"
)

// Terminal reports whether the outcome ends the pending state.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeAccurate, OutcomePartiallyAccurate, OutcomeInaccurate:
		return true
	default:
		return false
	}
}

// Impact classifies how a factor moves the predicted risk.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// Factor is one weighted input behind a prediction.
type Factor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Impact      Impact  `json:"impact"`
	Description string  `json:"description"`
}

// HealthPrediction is a time-boxed, confidence-scored forecast of future
// risk. Created by the generator; mutated only by MarkOutcome (one-way out
// of pending) and Deactivate (on supersession).
type HealthPrediction struct {
	ID           uuid.UUID              `json:"id"`
	SubjectID    uuid.UUID              `json:"subject_id"`
	Type         Type                   `json:"prediction_type"`
	Confidence   float64                `json:"confidence"`
	RiskScore    float64                `json:"risk_score"`
	Data         map[string]interface{} `json:"prediction_data,omitempty"`
	Factors      []Factor               `json:"factors"`
	Timeframe    Timeframe              `json:"timeframe"`
	Outcome      Outcome                `json:"actual_outcome"`
	OutcomeNotes string                 `json:"outcome_notes,omitempty"`
	ValidUntil   time.Time              `json:"valid_until"`
	IsActive     bool                   `json:"is_active"`
	CreatedAt    time.Time              `json:"created_at"`
}

// New builds a validated pending prediction with ValidUntil derived from
// the timeframe.
func New(subjectID uuid.UUID, typ Type, timeframe Timeframe, riskScore, confidence float64,
	factors []Factor, data map[string]interface{}) (*HealthPrediction, error) {

	if subjectID == uuid.Nil {
		return nil, fmt.Errorf("subject ID cannot be nil")
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid prediction type %q", typ)
	}
	if !timeframe.Valid() {
		return nil, fmt.Errorf("invalid timeframe %q", timeframe)
	}
	if riskScore < 0 || riskScore > 100 {
		return nil, fmt.Errorf("risk score %.2f outside [0,100]", riskScore)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence %.2f outside [0,1]", confidence)
	}

	now := clock.Now()
	return &HealthPrediction{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		Type:       typ,
		Confidence: confidence,
		RiskScore:  riskScore,
		Data:       data,
		Factors:    factors,
		Timeframe:  timeframe,
		Outcome:    OutcomePending,
		ValidUntil: now.Add(timeframe.Duration()),
		IsActive:   true,
		CreatedAt:  now,
	}, nil
}

// IsExpired is the single interpretation of prediction expiry.
func (p *HealthPrediction) IsExpired(now time.Time) bool {
	return now.After(p.ValidUntil)
}

// MarkOutcome records the validated outcome. Allowed exactly once, from
// pending to a terminal value.
func (p *HealthPrediction) MarkOutcome(outcome Outcome, notes string) error {
	if !outcome.Terminal() {
		return fmt.Errorf("outcome %q is not a terminal value", outcome)
	}
	if p.Outcome != OutcomePending {
		return fmt.Errorf("outcome already recorded as %q", p.Outcome)
	}
	p.Outcome = outcome
	p.OutcomeNotes = notes
	return nil
}

// Deactivate retires the prediction when a fresher batch supersedes it.
func (p *HealthPrediction) Deactivate() {
	p.IsActive = false
}

// Clone returns a deep copy sharing no slices or maps with the original.
func (p *HealthPrediction) Clone() *HealthPrediction {
	dup := *p
	dup.Factors = append([]Factor(nil), p.Factors...)
	if p.Data != nil {
		data := make(map[string]interface{}, len(p.Data))
		for k, v := range p.Data {
			data[k] = v
		}
		dup.Data = data
	}
	return &dup
}
