package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/services"

	"github.com/IBM/sarama"
)

// KafkaTopics names the topics tracking events are written to
type KafkaTopics struct {
	// Positions receives position_update events
	Positions string
	// Status receives every other event type
	Status string
}

// KafkaPublisher streams tracking events to the order layer
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topics   KafkaTopics
	logger   *slog.Logger
}

// NewSyncProducer creates a producer that waits for all replicas
func NewSyncProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

// NewKafkaPublisher creates a new Kafka publisher
func NewKafkaPublisher(producer sarama.SyncProducer, topics KafkaTopics, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		producer: producer,
		topics:   topics,
		logger:   logger.With(slog.String("component", "kafka_publisher")),
	}
}

// Publish writes the event keyed by order so one order's events stay ordered
func (p *KafkaPublisher) Publish(_ context.Context, event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := p.topics.Status
	if event.Type == models.EventTypePositionUpdate {
		topic = p.topics.Positions
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.OrderID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("event_id"), Value: []byte(event.ID.String())},
			{Key: []byte("timestamp"), Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", topic, err)
	}

	p.logger.Debug("event published",
		slog.String("topic", topic),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
		slog.String("event_type", string(event.Type)),
		slog.String("event_id", event.ID.String()),
	)
	return nil
}

// Close closes the producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

var _ services.EventPublisher = (*KafkaPublisher)(nil)
