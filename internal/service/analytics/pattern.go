package analytics

// WeeklyLag is the autocorrelation lag for weekly cycles on daily series.
const WeeklyLag = 7

// MinPatternPoints is the minimum series length before any cycle test runs.
const MinPatternPoints = 14

// patternThreshold is the autocorrelation above which a cycle counts as
// detected.
const patternThreshold = 0.5

// PatternResult is the outcome of one cyclical pattern test.
type PatternResult struct {
	Detected   bool
	Confidence float64
}

// DetectCycle tests the series for a cyclical pattern at the given lag.
// Short series (< MinPatternPoints) and zero-variance series resolve to
// not-detected with zero confidence; neither computes anything that could
// divide by zero. Confidence equals the autocorrelation coefficient.
func DetectCycle(values []float64, lag int) PatternResult {
	if len(values) < MinPatternPoints || lag <= 0 || lag >= len(values) {
		return PatternResult{}
	}

	coeff := Autocorrelation(values, lag)
	if coeff <= patternThreshold {
		return PatternResult{}
	}
	return PatternResult{Detected: true, Confidence: coeff}
}

// Autocorrelation computes the normalized autocorrelation of the series
// with a lagged copy of itself:
//
//	sum[(v_i - mean)(v_{i+lag} - mean)] / sum[(v_i - mean)^2]
//
// A zero denominator (constant series) yields 0.
func Autocorrelation(values []float64, lag int) float64 {
	n := len(values)
	if lag <= 0 || lag >= n {
		return 0
	}

	m := mean(values)

	var num, den float64
	for i := 0; i < n-lag; i++ {
		num += (values[i] - m) * (values[i+lag] - m)
	}
	for i := 0; i < n; i++ {
		d := values[i] - m
		den += d * d
	}

	if den == 0 {
		return 0
	}
	return num / den
}
