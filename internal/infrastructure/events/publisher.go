package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Priority ranks a notification for the delivery collaborator.
type Priority string

const (
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is the outbound event emitted when a critical risk or a
// high-risk prediction is produced. Delivery is the collaborator's problem;
// this core only emits.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	SubjectID uuid.UUID              `json:"subject_id"`
	Category  string                 `json:"category"`
	Message   string                 `json:"message"`
	Channel   string                 `json:"channel"`
	Priority  Priority               `json:"priority"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	EmittedAt time.Time              `json:"emitted_at"`
}

// Publisher emits notification events. Publish failures are logged and
// swallowed by callers; they never fail the originating write.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

// NoopPublisher discards notifications. Used in tests and when no broker
// is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Notification) error { return nil }
func (NoopPublisher) Close() error                                { return nil }
