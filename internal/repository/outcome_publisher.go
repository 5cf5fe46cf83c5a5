package repository

import (
	"context"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	pkgkafka "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/kafka"
)

// KafkaOutcomePublisher emits one JSON event per finished update cycle,
// keyed by symbol so downstream consumers see per-symbol order.
type KafkaOutcomePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaOutcomePublisher creates a Kafka-backed outcome publisher.
func NewKafkaOutcomePublisher(producer *pkgkafka.Producer, topic string) repository.OutcomePublisher {
	return &KafkaOutcomePublisher{producer: producer, topic: topic}
}

func (p *KafkaOutcomePublisher) PublishOutcome(ctx context.Context, o *models.UpdateOutcome) error {
	return p.producer.Publish(ctx, p.topic, []byte(o.Symbol), o)
}

func (p *KafkaOutcomePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopOutcomePublisher discards outcomes. Used when Kafka is disabled.
type NopOutcomePublisher struct{}

func (NopOutcomePublisher) PublishOutcome(context.Context, *models.UpdateOutcome) error { return nil }
func (NopOutcomePublisher) Close() error                                               { return nil }
