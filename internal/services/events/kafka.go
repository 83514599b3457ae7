package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes ledger events to a Kafka topic keyed by user id, so events
// of one user stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(cfg *models.KafkaConfig) (*KafkaPublisher, error) {
	if cfg == nil || len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				fiberlog.Errorf("Failed to deliver %d ledger events: %v", len(messages), err)
			}
		},
	}

	return &KafkaPublisher{writer: w}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event LedgerEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewPublisher picks the Kafka publisher when configured and the no-op one otherwise.
func NewPublisher(cfg models.EventsConfig) (Publisher, error) {
	if cfg.Kafka == nil {
		fiberlog.Info("Ledger events disabled - no Kafka configured")
		return NewNoopPublisher(), nil
	}
	p, err := NewKafkaPublisher(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	fiberlog.Infof("Publishing ledger events to Kafka topic %s", cfg.Kafka.Topic)
	return p, nil
}
