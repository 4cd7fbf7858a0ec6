package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"contact-service/internal/metrics"

	"github.com/IBM/sarama"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
	metrics  *metrics.MessagingMetrics
	logger   *slog.Logger
}

func NewProducer(brokers []string, topic string, m *metrics.MessagingMetrics, logger *slog.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = "contact-service"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	logger.Info("kafka producer initialized", "brokers", brokers, "topic", topic)

	return newProducer(producer, topic, m, logger), nil
}

func newProducer(producer sarama.SyncProducer, topic string, m *metrics.MessagingMetrics, logger *slog.Logger) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
		metrics:  m,
		logger:   logger,
	}
}

// SendMessage publishes value as JSON keyed by key, so events for one
// contact land on the same partition.
func (p *Producer) SendMessage(ctx context.Context, key string, value interface{}) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal message", "error", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(valueBytes),
	}

	start := time.Now()
	partition, offset, err := p.producer.SendMessage(msg)
	p.metrics.RecordPublish(ctx, "kafka", p.topic, time.Since(start), err)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to kafka", "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "message sent to kafka", "topic", p.topic, "partition", partition, "offset", offset, "key", key)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
