package trend

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Trend is the per-subject, per-metric time series together with its
// derived analytics. DataPoints is an append-only log; Analytics, Quality,
// Correlations and Patterns are recomputable projections over it.
type Trend struct {
	ID         uuid.UUID `json:"id"`
	SubjectID  uuid.UUID `json:"subject_id"`
	MetricName string    `json:"metric_name"`
	Category   Category  `json:"category"`
	Timeframe  Timeframe `json:"timeframe"`

	DataPoints []DataPoint `json:"data_points"`
	Analytics  Analytics   `json:"analytics"`

	PredictionIDs []uuid.UUID        `json:"prediction_ids,omitempty"`
	Correlations  []CorrelationEntry `json:"correlations,omitempty"`
	Patterns      []PatternEntry     `json:"patterns,omitempty"`

	Targets *Targets    `json:"targets,omitempty"`
	Quality DataQuality `json:"data_quality"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DataPoint is one timestamped observation of a metric's value.
// Immutable once appended; never deleted.
type DataPoint struct {
	Value     float64                `json:"value"`
	Timestamp time.Time              `json:"timestamp"`
	Source    Source                 `json:"source"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Analytics holds the derived trend state, recomputed on every append.
type Analytics struct {
	CurrentValue     float64   `json:"current_value"`
	Direction        Direction `json:"trend_direction"`
	Strength         float64   `json:"trend_strength"`
	ChangePercentage float64   `json:"change_percentage"`
	ComputedAt       time.Time `json:"computed_at"`
}

// DataQuality scores how regularly and how stably a metric has been observed.
type DataQuality struct {
	Completeness float64     `json:"completeness"`
	Consistency  float64     `json:"consistency"`
	Gaps         GapAnalysis `json:"gap_analysis"`
}

// GapAnalysis summarizes observation gaps between consecutive points.
type GapAnalysis struct {
	GapCount   int           `json:"gap_count"`
	LargestGap time.Duration `json:"largest_gap"`
}

// CorrelationEntry records a significant correlation between this trend
// (the target) and another metric of the same subject.
type CorrelationEntry struct {
	MetricName  string              `json:"metric_name"`
	Coefficient float64             `json:"correlation_coefficient"`
	Strength    CorrelationStrength `json:"strength"`
	Significant bool                `json:"significance"`
}

// PatternEntry records the outcome of a cyclical pattern test at one lag.
type PatternEntry struct {
	Kind       string    `json:"kind"`
	Lag        int       `json:"lag"`
	Detected   bool      `json:"detected"`
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
}

// Range is an inclusive numeric band.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Distance returns how far v lies outside the range, 0 when inside.
func (r Range) Distance(v float64) float64 {
	switch {
	case v < r.Min:
		return r.Min - v
	case v > r.Max:
		return v - r.Max
	default:
		return 0
	}
}

func (r Range) Width() float64 {
	return r.Max - r.Min
}

// Targets holds the per-metric value bands: Ideal is the goal band,
// Warning and Critical are progressively wider acceptable bands.
type Targets struct {
	Ideal    Range `json:"ideal_range"`
	Warning  Range `json:"warning_thresholds"`
	Critical Range `json:"critical_thresholds"`
}

// TargetStatus classifies a value against the target bands.
type TargetStatus int

const (
	StatusOK TargetStatus = iota
	StatusWarning
	StatusCritical
)

func (s TargetStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Classify places a value in the ok/warning/critical band.
func (t Targets) Classify(v float64) TargetStatus {
	if !t.Critical.Contains(v) {
		return StatusCritical
	}
	if !t.Warning.Contains(v) {
		return StatusWarning
	}
	return StatusOK
}

// NewTrend creates a trend for the first observation of a (subject, metric).
func NewTrend(subjectID uuid.UUID, metricName string, category Category, timeframe Timeframe, targets *Targets) (*Trend, error) {
	if subjectID == uuid.Nil {
		return nil, fmt.Errorf("subject ID cannot be nil")
	}
	if metricName == "" {
		return nil, fmt.Errorf("metric name cannot be empty")
	}
	if !category.Valid() {
		return nil, fmt.Errorf("invalid category %q", category)
	}
	if !timeframe.Valid() {
		return nil, fmt.Errorf("invalid timeframe %q", timeframe)
	}

	now := clock.Now()
	return &Trend{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		MetricName: metricName,
		Category:   category,
		Timeframe:  timeframe,
		Targets:    targets,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AppendDataPoint adds one observation. The log is append-only; a late
// arrival is inserted at its timestamp position so DataPoints stays
// time-ordered. Duplicate content is allowed.
func (t *Trend) AppendDataPoint(dp DataPoint) error {
	if math.IsNaN(dp.Value) || math.IsInf(dp.Value, 0) {
		return fmt.Errorf("data point value must be finite")
	}
	if dp.Timestamp.IsZero() {
		return fmt.Errorf("data point timestamp is required")
	}
	if !dp.Source.Valid() {
		return fmt.Errorf("invalid data point source")
	}

	i := len(t.DataPoints)
	for i > 0 && t.DataPoints[i-1].Timestamp.After(dp.Timestamp) {
		i--
	}
	t.DataPoints = append(t.DataPoints, DataPoint{})
	copy(t.DataPoints[i+1:], t.DataPoints[i:])
	t.DataPoints[i] = dp

	t.UpdatedAt = clock.Now()
	return nil
}

// Values returns the ordered observation values.
func (t *Trend) Values() []float64 {
	values := make([]float64, len(t.DataPoints))
	for i, dp := range t.DataPoints {
		values[i] = dp.Value
	}
	return values
}

// LatestValue returns the most recent observation value.
func (t *Trend) LatestValue() (float64, bool) {
	if len(t.DataPoints) == 0 {
		return 0, false
	}
	return t.DataPoints[len(t.DataPoints)-1].Value, true
}

// LatestTimestamp returns the most recent observation time.
func (t *Trend) LatestTimestamp() (time.Time, bool) {
	if len(t.DataPoints) == 0 {
		return time.Time{}, false
	}
	return t.DataPoints[len(t.DataPoints)-1].Timestamp, true
}

// CurrentStatus classifies the latest value against the targets.
// Trends without targets are always StatusOK.
func (t *Trend) CurrentStatus() TargetStatus {
	v, ok := t.LatestValue()
	if !ok || t.Targets == nil {
		return StatusOK
	}
	return t.Targets.Classify(v)
}

// SetPattern replaces the pattern entry for the given kind, keeping one
// entry per detector kind.
func (t *Trend) SetPattern(entry PatternEntry) {
	for i := range t.Patterns {
		if t.Patterns[i].Kind == entry.Kind {
			t.Patterns[i] = entry
			return
		}
	}
	t.Patterns = append(t.Patterns, entry)
}

// SetCorrelation replaces the correlation entry for the counterpart metric,
// keeping one entry per metric pair.
func (t *Trend) SetCorrelation(entry CorrelationEntry) {
	for i := range t.Correlations {
		if t.Correlations[i].MetricName == entry.MetricName {
			t.Correlations[i] = entry
			return
		}
	}
	t.Correlations = append(t.Correlations, entry)
}

// RemoveCorrelation drops the entry for the counterpart metric, if present.
func (t *Trend) RemoveCorrelation(metricName string) {
	for i := range t.Correlations {
		if t.Correlations[i].MetricName == metricName {
			t.Correlations = append(t.Correlations[:i], t.Correlations[i+1:]...)
			return
		}
	}
}

// AttachPrediction links a prediction to this trend, once.
func (t *Trend) AttachPrediction(id uuid.UUID) {
	for _, existing := range t.PredictionIDs {
		if existing == id {
			return
		}
	}
	t.PredictionIDs = append(t.PredictionIDs, id)
}

// Deactivate soft-deletes the trend. The history is retained for audit;
// inactive trends are excluded from aggregation.
func (t *Trend) Deactivate() {
	t.IsActive = false
	t.UpdatedAt = clock.Now()
}

// Clone returns a deep copy sharing no slices or maps with the original.
func (t *Trend) Clone() *Trend {
	dup := *t
	dup.DataPoints = make([]DataPoint, len(t.DataPoints))
	for i, dp := range t.DataPoints {
		dup.DataPoints[i] = dp
		if dp.Context != nil {
			ctx := make(map[string]interface{}, len(dp.Context))
			for k, v := range dp.Context {
				ctx[k] = v
			}
			dup.DataPoints[i].Context = ctx
		}
	}
	dup.PredictionIDs = append([]uuid.UUID(nil), t.PredictionIDs...)
	dup.Correlations = append([]CorrelationEntry(nil), t.Correlations...)
	dup.Patterns = append([]PatternEntry(nil), t.Patterns...)
	if t.Targets != nil {
		targets := *t.Targets
		dup.Targets = &targets
	}
	return &dup
}
