package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "mate"

// Metrics holds the control-plane metric instruments.
type Metrics struct {
	ProvisionStarted   metric.Int64Counter
	ProvisionCompleted metric.Int64Counter
	ProvisionFailed    metric.Int64Counter
	JobsDispatched     metric.Int64Counter
	JobsFailed         metric.Int64Counter
	ProvisionDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ProvisionStarted, err = meter.Int64Counter("mate.provision.started",
		metric.WithDescription("Provisioning runs started"))
	if err != nil {
		return nil, err
	}

	m.ProvisionCompleted, err = meter.Int64Counter("mate.provision.completed",
		metric.WithDescription("Provisioning runs completed"))
	if err != nil {
		return nil, err
	}

	m.ProvisionFailed, err = meter.Int64Counter("mate.provision.failed",
		metric.WithDescription("Provisioning runs failed"))
	if err != nil {
		return nil, err
	}

	m.JobsDispatched, err = meter.Int64Counter("mate.jobs.dispatched",
		metric.WithDescription("Background jobs enqueued"))
	if err != nil {
		return nil, err
	}

	m.JobsFailed, err = meter.Int64Counter("mate.jobs.failed",
		metric.WithDescription("Background jobs failed"))
	if err != nil {
		return nil, err
	}

	m.ProvisionDuration, err = meter.Float64Histogram("mate.provision.duration_minutes",
		metric.WithDescription("Provisioning duration in minutes"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
