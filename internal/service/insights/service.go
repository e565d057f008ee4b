package insights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// highlightStrength is the trend strength above which a moving metric is
// surfaced as a highlight.
const highlightStrength = 0.7

// strongCorrelation is the |r| above which a correlation gets a narrative.
const strongCorrelation = 0.7

// categoryAdvice holds the static recommendation text per category.
var categoryAdvice = map[trend.Category]string{
	trend.CategoryMentalHealth:   "consider a check-in with your care team",
	trend.CategoryPhysicalHealth: "review recent activity and vitals with your clinician",
	trend.CategoryLifestyle:      "aim for a consistent sleep and activity routine",
	trend.CategoryMedication:     "review your medication schedule and refill status",
	trend.CategorySocial:         "reconnect with your support network",
	trend.CategoryEnvironmental:  "check recent changes in your living environment",
}

// service implements the Service interface
type service struct {
	trendsSrc   TrendSource
	assessments AssessmentSource
	logger      *zap.Logger
}

// NewService creates the insight summarizer. assessments may be nil.
func NewService(trendsSrc TrendSource, assessments AssessmentSource, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{trendsSrc: trendsSrc, assessments: assessments, logger: logger}
}

func (s *service) Summarize(ctx context.Context, subjectID uuid.UUID, windowDays int) *Summary {
	summary := &Summary{
		SubjectID:       subjectID,
		Status:          StatusNoData,
		GeneratedAt:     time.Now().UTC(),
		Highlights:      []Highlight{},
		Recommendations: []string{},
		Correlations:    []string{},
	}
	if subjectID == uuid.Nil {
		return summary
	}

	trendList, err := s.trendsSrc.ListBySubject(ctx, subjectID, true)
	if err != nil {
		s.logger.Warn("failed to load trends for summary",
			zap.String("subject_id", subjectID.String()),
			zap.Error(err),
		)
		return summary
	}

	// Trends with no observation inside the window read as gone quiet and
	// stay out of the summary.
	var cutoff time.Time
	if windowDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -windowDays)
	}
	withData := trendList[:0:0]
	for _, t := range trendList {
		latest, ok := t.LatestTimestamp()
		if !ok {
			continue
		}
		if !cutoff.IsZero() && latest.Before(cutoff) {
			continue
		}
		withData = append(withData, t)
	}
	if len(withData) == 0 {
		return summary
	}

	summary.Status = StatusOK
	summary.TotalTrends = len(withData)
	for _, t := range withData {
		switch t.Analytics.Direction {
		case trend.DirectionImproving:
			summary.ImprovingCount++
		case trend.DirectionDeclining:
			summary.DecliningCount++
		default:
			summary.StableCount++
		}
	}

	summary.Highlights = buildHighlights(withData)
	summary.Recommendations = buildRecommendations(withData)
	summary.Correlations = buildCorrelationNarratives(withData)
	s.attachRisk(ctx, subjectID, summary)
	return summary
}

func buildHighlights(trendList []*trend.Trend) []Highlight {
	highlights := []Highlight{}
	for _, t := range trendList {
		if t.Analytics.Direction == trend.DirectionStable || t.Analytics.Strength <= highlightStrength {
			continue
		}
		direction := t.Analytics.Direction.String()
		highlights = append(highlights, Highlight{
			MetricName:       t.MetricName,
			Direction:        direction,
			Strength:         t.Analytics.Strength,
			ChangePercentage: t.Analytics.ChangePercentage,
			Message:          fmt.Sprintf("%s is %s strongly (%.1f%% change)", t.MetricName, direction, t.Analytics.ChangePercentage),
		})
	}
	sort.SliceStable(highlights, func(i, j int) bool { return highlights[i].Strength > highlights[j].Strength })
	return highlights
}

func buildRecommendations(trendList []*trend.Trend) []string {
	recommendations := []string{}
	for _, t := range trendList {
		status := t.CurrentStatus()
		if status == trend.StatusOK {
			continue
		}
		advice := categoryAdvice[t.Category]
		recommendations = append(recommendations,
			fmt.Sprintf("%s is in the %s band; %s", t.MetricName, status, advice))
	}
	return recommendations
}

// buildCorrelationNarratives surfaces the strong significant pairs, each
// pair once.
func buildCorrelationNarratives(trendList []*trend.Trend) []string {
	narratives := []string{}
	seen := make(map[string]bool)
	for _, t := range trendList {
		for _, entry := range t.Correlations {
			if !entry.Significant || entry.Strength != trend.StrengthStrong {
				continue
			}
			key := pairKey(t.MetricName, entry.MetricName)
			if seen[key] {
				continue
			}
			seen[key] = true

			relation := "moves with"
			if entry.Coefficient < 0 {
				relation = "moves against"
			}
			narratives = append(narratives,
				fmt.Sprintf("%s %s %s (r=%.2f)", t.MetricName, relation, entry.MetricName, entry.Coefficient))
		}
	}
	return narratives
}

func (s *service) attachRisk(ctx context.Context, subjectID uuid.UUID, summary *Summary) {
	if s.assessments == nil {
		return
	}
	latest, err := s.assessments.LatestByType(ctx, subjectID, assessment.TypeComprehensive)
	if err != nil {
		return
	}
	score := latest.OverallRiskScore
	summary.OverallRiskScore = &score
	summary.RiskLevel = latest.RiskLevel.String()
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
