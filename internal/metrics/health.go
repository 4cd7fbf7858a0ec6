package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type HealthMetrics struct {
	dependencyChecks       metric.Int64Counter
	dependencyResponseTime metric.Float64Histogram
	serviceInfo            metric.Int64ObservableGauge
}

func NewHealthMetrics(meter metric.Meter) (*HealthMetrics, error) {
	hm := &HealthMetrics{}

	var err error

	hm.dependencyChecks, err = meter.Int64Counter(
		"dependency.checks",
		metric.WithDescription("Readiness checks per dependency and outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 1ms, 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s
	hm.dependencyResponseTime, err = meter.Float64Histogram(
		"dependency.response_time",
		metric.WithDescription("Dependency health check response time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
		),
	)
	if err != nil {
		return nil, err
	}

	// Always 1, carries metadata as labels
	hm.serviceInfo, err = meter.Int64ObservableGauge(
		"service.info",
		metric.WithDescription("Service metadata information"),
		metric.WithUnit("{info}"),
	)
	if err != nil {
		return nil, err
	}

	return hm, nil
}

func (hm *HealthMetrics) RegisterServiceInfo(meter metric.Meter, serviceName, version, env string) error {
	if hm == nil || hm.serviceInfo == nil {
		return nil
	}

	_, err := meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			observer.ObserveInt64(hm.serviceInfo, 1, metric.WithAttributes(
				attribute.String("service_name", serviceName),
				attribute.String("version", version),
				attribute.String("environment", env),
			))
			return nil
		},
		hm.serviceInfo,
	)
	return err
}

func (hm *HealthMetrics) RecordCheck(ctx context.Context, dependency string, duration time.Duration, up bool) {
	if hm == nil || hm.dependencyChecks == nil {
		return
	}

	status := "up"
	if !up {
		status = "down"
	}

	hm.dependencyChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("status", status),
	))
	hm.dependencyResponseTime.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("dependency", dependency),
	))
}
