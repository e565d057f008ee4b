package predictor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/prediction"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// typeTimeframes fixes how far forward each prediction type looks.
var typeTimeframes = map[prediction.Type]prediction.Timeframe{
	prediction.TypeMentalHealthRisk:    prediction.Timeframe1Week,
	prediction.TypeMedicationAdherence: prediction.Timeframe2Weeks,
	prediction.TypeEmergencyRisk:       prediction.Timeframe3Days,
	prediction.TypeHealthDeterioration: prediction.Timeframe1Month,
}

// typeCategories maps each prediction type to the trend categories that
// feed it. Emergency risk and deterioration read the whole trend graph.
var typeCategories = map[prediction.Type][]trend.Category{
	prediction.TypeMentalHealthRisk:    {trend.CategoryMentalHealth},
	prediction.TypeMedicationAdherence: {trend.CategoryMedication},
	prediction.TypeEmergencyRisk:       trend.AllCategories(),
	prediction.TypeHealthDeterioration: trend.AllCategories(),
}

func categoryFeedsType(category trend.Category, typ prediction.Type) bool {
	for _, c := range typeCategories[typ] {
		if c == category {
			return true
		}
	}
	return false
}

// inputs is the distilled view of an assessment and trend graph that the
// per-type scoring reads.
type inputs struct {
	overall       float64
	confidence    float64
	category      map[trend.Category]float64
	declining     []*trend.Trend
	totalTrends   int
	totalPoints   int
	criticalAlert bool
}

func deriveInputs(a *assessment.RiskAssessment, trendList []*trend.Trend) inputs {
	in := inputs{
		overall:     a.OverallRiskScore,
		confidence:  a.Confidence,
		category:    a.CategoryScores,
		totalTrends: len(trendList),
	}
	for _, t := range trendList {
		in.totalPoints += len(t.DataPoints)
		if t.Analytics.Direction == trend.DirectionDeclining {
			in.declining = append(in.declining, t)
		}
	}
	for _, alert := range a.Alerts {
		if alert.Priority == assessment.PriorityCritical {
			in.criticalAlert = true
			break
		}
	}
	return in
}

// buildPrediction scores one type from the shared inputs. horizon, when
// set, replaces the per-type default timeframe.
func buildPrediction(subjectID uuid.UUID, typ prediction.Type, horizon prediction.Timeframe, in inputs) (*prediction.HealthPrediction, error) {
	var score float64
	switch typ {
	case prediction.TypeMentalHealthRisk:
		score = in.categoryOr(trend.CategoryMentalHealth, in.overall)
	case prediction.TypeMedicationAdherence:
		score = in.categoryOr(trend.CategoryMedication, in.overall)
	case prediction.TypeEmergencyRisk:
		score = in.overall
		if in.criticalAlert {
			score += 10
		}
	case prediction.TypeHealthDeterioration:
		score = 0.6*in.overall + 40*in.decliningRatio()
	}
	score = clamp(score, 0, 100)

	data := map[string]interface{}{
		"overall_risk_score": in.overall,
		"declining_metrics":  metricNames(in.declining),
	}

	timeframe := typeTimeframes[typ]
	if horizon != "" {
		timeframe = horizon
	}
	return prediction.New(subjectID, typ, timeframe, score, in.batchConfidence(), in.factors(typ), data)
}

func (in inputs) categoryOr(category trend.Category, fallback float64) float64 {
	if score, ok := in.category[category]; ok {
		return score
	}
	return fallback
}

func (in inputs) decliningRatio() float64 {
	if in.totalTrends == 0 {
		return 0
	}
	return float64(len(in.declining)) / float64(in.totalTrends)
}

// batchConfidence blends assessment confidence with how much raw data the
// subject has; roughly a month of daily observations counts as full.
func (in inputs) batchConfidence() float64 {
	richness := float64(in.totalPoints) / 30
	if richness > 1 {
		richness = 1
	}
	return clamp(0.5*in.confidence+0.5*richness, 0, 1)
}

// factors lists the weighted inputs behind one prediction: the category
// risk level plus up to three declining metrics relevant to the type.
func (in inputs) factors(typ prediction.Type) []prediction.Factor {
	var factors []prediction.Factor

	for _, category := range typeCategories[typ] {
		score, ok := in.category[category]
		if !ok {
			continue
		}
		impact := prediction.ImpactNeutral
		if score >= 50 {
			impact = prediction.ImpactNegative
		} else if score < 25 {
			impact = prediction.ImpactPositive
		}
		factors = append(factors, prediction.Factor{
			Name:        fmt.Sprintf("%s_risk", category),
			Weight:      0.6 / float64(len(typeCategories[typ])),
			Impact:      impact,
			Description: fmt.Sprintf("%s category scored %.0f", category, score),
		})
	}

	added := 0
	for _, t := range in.declining {
		if added == 3 {
			break
		}
		if !categoryFeedsType(t.Category, typ) {
			continue
		}
		factors = append(factors, prediction.Factor{
			Name:        t.MetricName,
			Weight:      0.4 / 3,
			Impact:      prediction.ImpactNegative,
			Description: fmt.Sprintf("%s declining with strength %.2f", t.MetricName, t.Analytics.Strength),
		})
		added++
	}
	return factors
}

func metricNames(trendList []*trend.Trend) []string {
	names := make([]string, 0, len(trendList))
	for _, t := range trendList {
		names = append(names, t.MetricName)
	}
	return names
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
