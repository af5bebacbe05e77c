package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
)

// Event types published to the analytics sink.
const (
	EventRecommendationServed = "recommendation.served"
	EventFeedbackRecorded     = "feedback.recorded"
)

// AnalyticsEvent is the envelope written to Kafka. The sink is write-only
// and fire-and-forget: publish failures are logged, never surfaced to the
// request path.
type AnalyticsEvent struct {
	EventID   uuid.UUID              `json:"event_id"`
	EventType string                 `json:"event_type"`
	UserID    string                 `json:"user_id"` // "anonymous" for visitor requests
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

type EventBus struct {
	recWriter      *kafka.Writer
	feedbackWriter *kafka.Writer
	logger         *logrus.Logger
}

func NewEventBus(cfg *config.Config, logger *logrus.Logger) (*EventBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	recWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.RecommendationEvents,
		Balancer:     &kafka.Hash{}, // key by user for per-user ordering
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	feedbackWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.FeedbackEvents,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	return &EventBus{
		recWriter:      recWriter,
		feedbackWriter: feedbackWriter,
		logger:         logger,
	}, nil
}

// PublishRecommendationServed emits a batch-served event to the analytics sink.
func (b *EventBus) PublishRecommendationServed(ctx context.Context, userID string, payload map[string]interface{}) {
	b.publish(ctx, b.recWriter, EventRecommendationServed, userID, payload)
}

// PublishFeedbackRecorded emits a feedback event to the analytics sink.
func (b *EventBus) PublishFeedbackRecorded(ctx context.Context, userID string, payload map[string]interface{}) {
	b.publish(ctx, b.feedbackWriter, EventFeedbackRecorded, userID, payload)
}

func (b *EventBus) publish(ctx context.Context, writer *kafka.Writer, eventType, userID string, payload map[string]interface{}) {
	event := AnalyticsEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		UserID:    userID,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.WithError(err).Warn("Failed to marshal analytics event")
		return
	}

	message := kafka.Message{
		Key:   []byte(userID),
		Value: data,
		Time:  event.Timestamp,
	}

	if err := writer.WriteMessages(ctx, message); err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"user_id":    userID,
		}).Warn("Failed to publish analytics event")
	}
}

func (b *EventBus) Close() error {
	var errs []error
	if err := b.recWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close recommendation writer: %w", err))
	}
	if err := b.feedbackWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close feedback writer: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing event bus: %v", errs)
	}
	return nil
}
