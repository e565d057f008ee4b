package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReusePolicy is the explicit cache policy behind the "recent result"
// windows: an assessment or prediction batch created within TTL of now is
// reused instead of recomputed, unless the caller forces regeneration.
// Freshness is best-effort; concurrent regenerations may race and both
// succeed.
type ReusePolicy struct {
	TTL time.Duration
}

// Fresh reports whether a result created at createdAt is still reusable.
func (p ReusePolicy) Fresh(createdAt, now time.Time) bool {
	if p.TTL <= 0 {
		return false
	}
	return now.Sub(createdAt) < p.TTL
}

// AssessmentKey builds the cache key for a subject's latest assessment of
// one type.
func AssessmentKey(subjectID uuid.UUID, assessmentType string) string {
	return fmt.Sprintf("assessment:%s:%s", subjectID, assessmentType)
}

// PredictionsKey builds the cache key for a subject's active prediction
// batch.
func PredictionsKey(subjectID uuid.UUID) string {
	return fmt.Sprintf("predictions:%s", subjectID)
}
