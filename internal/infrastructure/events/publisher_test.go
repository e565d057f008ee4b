package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_JSONShape(t *testing.T) {
	n := Notification{
		ID:        uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		SubjectID: uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8"),
		Category:  "risk_assessment",
		Message:   "critical risk level: overall score 82",
		Channel:   "care_team",
		Priority:  PriorityCritical,
		Metadata:  map[string]interface{}{"assessment_type": "comprehensive"},
		EmittedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "risk_assessment", decoded["category"])
	assert.Equal(t, "critical", decoded["priority"])
	assert.Equal(t, "care_team", decoded["channel"])
	assert.Contains(t, decoded, "emitted_at")
	assert.Contains(t, decoded, "subject_id")

	t.Run("empty metadata is omitted", func(t *testing.T) {
		n := Notification{ID: uuid.New(), SubjectID: uuid.New()}
		data, err := json.Marshal(n)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "metadata")
	})
}

func TestNoopPublisher(t *testing.T) {
	p := NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Notification{}))
	assert.NoError(t, p.Close())
}
