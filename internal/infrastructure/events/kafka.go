package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig configures the notification event transport.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DefaultKafkaConfig returns default Kafka configuration
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "health-notifications",
	}
}

// KafkaPublisher emits notification events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to the configured topic.
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}

	logger.Info("kafka notification publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return &KafkaPublisher{writer: writer, logger: logger}, nil
}

// Publish writes the notification as a JSON message keyed by subject.
func (p *KafkaPublisher) Publish(ctx context.Context, n Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.EmittedAt.IsZero() {
		n.EmittedAt = time.Now()
	}

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.SubjectID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "priority", Value: []byte(string(n.Priority))},
			{Key: "category", Value: []byte(n.Category)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("notification publish failed",
			zap.String("subject_id", n.SubjectID.String()),
			zap.String("priority", string(n.Priority)),
			zap.Error(err))
		return fmt.Errorf("write notification: %w", err)
	}

	p.logger.Debug("notification published",
		zap.String("subject_id", n.SubjectID.String()),
		zap.String("priority", string(n.Priority)),
		zap.String("category", n.Category))

	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
