package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"review-auth/internal/config"
	"review-auth/internal/models"
	"review-auth/internal/util"
)

// KafkaProducer streams security events to the configured topic.
type KafkaProducer struct {
	Writer *kafka.Writer
	topic  string
}

func NewKafkaProducer(cfg *config.Config) (*KafkaProducer, error) {
	kafkaConfig := cfg.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaConfig.Brokers...),
		Topic:        kafkaConfig.SecurityEventTopic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				util.Error("failed to write kafka messages",
					zap.Error(err),
					zap.Int("message_count", len(messages)))
			}
		},
	}

	util.Info("Kafka producer initialized",
		zap.Strings("brokers", kafkaConfig.Brokers),
		zap.String("topic", kafkaConfig.SecurityEventTopic))

	return &KafkaProducer{Writer: writer, topic: kafkaConfig.SecurityEventTopic}, nil
}

// PublishSecurityEvents writes a batch of events keyed by username so one
// account's events stay ordered within a partition.
func (p *KafkaProducer) PublishSecurityEvents(ctx context.Context, events []models.SecurityEvent) error {
	messages := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal security event: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(ev.Username),
			Value: payload,
		})
	}

	if err := p.Writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to publish security events: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	if p.Writer == nil {
		return nil
	}
	if err := p.Writer.Close(); err != nil {
		util.Error("failed to close Kafka writer", zap.Error(err))
		return err
	}
	util.Info("Kafka producer closed")
	return nil
}
