package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database  *DatabaseMetrics
	Messaging *MessagingMetrics
	Health    *HealthMetrics

	contactsCreated    metric.Int64Counter
	contactsViewed     metric.Int64Counter
	contactsRejected   metric.Int64Counter
	requestsThrottled  metric.Int64Counter
	eventsPublishFails metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.Database, err = NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.Messaging, err = NewMessagingMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.Health, err = NewHealthMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.contactsCreated, err = meter.Int64Counter(
		"contact_service.contacts.created",
		metric.WithDescription("Total number of contact records created"),
		metric.WithUnit("{contact}"),
	)
	if err != nil {
		return nil, err
	}

	m.contactsViewed, err = meter.Int64Counter(
		"contact_service.contacts.viewed",
		metric.WithDescription("Total number of contact records read by id"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.contactsRejected, err = meter.Int64Counter(
		"contact_service.contacts.rejected",
		metric.WithDescription("Create requests rejected by validation or uniqueness checks"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.requestsThrottled, err = meter.Int64Counter(
		"contact_service.requests.throttled",
		metric.WithDescription("Requests rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.eventsPublishFails, err = meter.Int64Counter(
		"contact_service.events.publish_failures",
		metric.WithDescription("Contact events that could not be published"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordContactCreated(ctx context.Context) {
	if m != nil && m.contactsCreated != nil {
		m.contactsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordContactViewed(ctx context.Context) {
	if m != nil && m.contactsViewed != nil {
		m.contactsViewed.Add(ctx, 1)
	}
}

// RecordContactRejected counts a rejected create; reason is "validation" or "conflict".
func (m *Metrics) RecordContactRejected(ctx context.Context, reason, field string) {
	if m != nil && m.contactsRejected != nil {
		m.contactsRejected.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.String("field", field),
		))
	}
}

func (m *Metrics) RecordThrottled(ctx context.Context, route, rule string) {
	if m != nil && m.requestsThrottled != nil {
		m.requestsThrottled.Add(ctx, 1, metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("rule", rule),
		))
	}
}

func (m *Metrics) RecordPublishFailure(ctx context.Context, driver string) {
	if m != nil && m.eventsPublishFails != nil {
		m.eventsPublishFails.Add(ctx, 1, metric.WithAttributes(attribute.String("driver", driver)))
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{
		Database:  &DatabaseMetrics{},
		Messaging: &MessagingMetrics{},
		Health:    &HealthMetrics{},
	}
}
