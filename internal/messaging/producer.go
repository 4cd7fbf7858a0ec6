package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"contact-service/internal/metrics"

	"github.com/nats-io/nats.go"
)

// KeyHeader carries the event key, NATS has no native message key.
const KeyHeader = "Event-Key"

type Producer struct {
	conn    *nats.Conn
	subject string
	metrics *metrics.MessagingMetrics
	logger  *slog.Logger
}

func NewProducer(url string, subject string, m *metrics.MessagingMetrics, logger *slog.Logger) (*Producer, error) {
	nc, err := nats.Connect(url,
		nats.Name("contact-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject", subject)

	return &Producer{
		conn:    nc,
		subject: subject,
		metrics: m,
		logger:  logger,
	}, nil
}

func (p *Producer) SendMessage(ctx context.Context, key string, value interface{}) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal message", "error", err)
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(KeyHeader, key)
	msg.Data = valueBytes

	start := time.Now()
	err = p.conn.PublishMsg(msg)
	p.metrics.RecordPublish(ctx, "nats", p.subject, time.Since(start), err)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to NATS", "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "message sent to NATS", "subject", p.subject, "key", key)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Producer) Close() error {
	return p.conn.Drain()
}
