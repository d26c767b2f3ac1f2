package audit

import (
	"context"

	"review-auth/internal/client"
	"review-auth/internal/models"
)

// KafkaSink streams events to the security-event topic.
type KafkaSink struct {
	Producer *client.KafkaProducer
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, events []models.SecurityEvent) error {
	return s.Producer.PublishSecurityEvents(ctx, events)
}

// ClickHouseSink appends events to the analytics table.
type ClickHouseSink struct {
	Client *client.ClickHouseClient
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, events []models.SecurityEvent) error {
	return s.Client.InsertSecurityEvents(ctx, events)
}

// ElasticsearchSink indexes events for audit search.
type ElasticsearchSink struct {
	Client *client.ESClient
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Write(ctx context.Context, events []models.SecurityEvent) error {
	return s.Client.IndexSecurityEvents(ctx, events)
}
