package trend

import (
	"encoding/json"
	"fmt"
)

// Category groups metrics into the risk-assessment categories.
type Category string

const (
	CategoryMentalHealth   Category = "mental_health"
	CategoryPhysicalHealth Category = "physical_health"
	CategoryLifestyle      Category = "lifestyle"
	CategoryMedication     Category = "medication"
	CategorySocial         Category = "social"
	CategoryEnvironmental  Category = "environmental"
)

// AllCategories lists every valid category, in weighting order.
func AllCategories() []Category {
	return []Category{
		CategoryMentalHealth,
		CategoryPhysicalHealth,
		CategoryLifestyle,
		CategoryMedication,
		CategorySocial,
		CategoryEnvironmental,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryMentalHealth, CategoryPhysicalHealth, CategoryLifestyle,
		CategoryMedication, CategorySocial, CategoryEnvironmental:
		return true
	default:
		return false
	}
}

// Source identifies where an observation came from.
type Source string

const (
	SourceManual         Source = "manual"
	SourceDevice         Source = "device"
	SourceRiskAssessment Source = "risk_assessment"
	SourceImport         Source = "import"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceDevice, SourceRiskAssessment, SourceImport:
		return true
	default:
		return false
	}
}

// Timeframe is the expected observation cadence for a trend.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly:
		return true
	default:
		return false
	}
}

// Direction classifies a trend's movement relative to its ideal range.
type Direction int

const (
	DirectionStable Direction = iota
	DirectionImproving
	DirectionDeclining
)

func (d Direction) String() string {
	switch d {
	case DirectionImproving:
		return "improving"
	case DirectionDeclining:
		return "declining"
	case DirectionStable:
		return "stable"
	default:
		return "unknown"
	}
}

// Directions serialize by name so API payloads and stored documents stay
// categorical like the other enums.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "stable":
		*d = DirectionStable
	case "improving":
		*d = DirectionImproving
	case "declining":
		*d = DirectionDeclining
	default:
		return fmt.Errorf("unknown trend direction %q", s)
	}
	return nil
}

// CorrelationStrength buckets the magnitude of a correlation coefficient.
type CorrelationStrength int

const (
	StrengthWeak CorrelationStrength = iota
	StrengthModerate
	StrengthStrong
)

func (s CorrelationStrength) String() string {
	switch s {
	case StrengthWeak:
		return "weak"
	case StrengthModerate:
		return "moderate"
	case StrengthStrong:
		return "strong"
	default:
		return "unknown"
	}
}

func (s CorrelationStrength) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *CorrelationStrength) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "weak":
		*s = StrengthWeak
	case "moderate":
		*s = StrengthModerate
	case "strong":
		*s = StrengthStrong
	default:
		return fmt.Errorf("unknown correlation strength %q", raw)
	}
	return nil
}
