// Package otel provides OpenTelemetry instrumentation for the tenancy core.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tenancy"

// Metrics holds all tenancy metric instruments.
type Metrics struct {
	ResolutionsStarted   metric.Int64Counter
	ResolutionsSucceeded metric.Int64Counter
	ResolutionsFailed    metric.Int64Counter
	Retries              metric.Int64Counter
	MutationsFailed      metric.Int64Counter
	ResolutionDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ResolutionsStarted, err = meter.Int64Counter("tenancy.resolutions.started",
		metric.WithDescription("Number of tenant resolutions started"))
	if err != nil {
		return nil, err
	}

	m.ResolutionsSucceeded, err = meter.Int64Counter("tenancy.resolutions.succeeded",
		metric.WithDescription("Number of tenant resolutions that returned a result"))
	if err != nil {
		return nil, err
	}

	m.ResolutionsFailed, err = meter.Int64Counter("tenancy.resolutions.failed",
		metric.WithDescription("Number of tenant resolutions that failed after retries"))
	if err != nil {
		return nil, err
	}

	m.Retries, err = meter.Int64Counter("tenancy.retries",
		metric.WithDescription("Number of retry attempts against the tenant store"))
	if err != nil {
		return nil, err
	}

	m.MutationsFailed, err = meter.Int64Counter("tenancy.mutations.failed",
		metric.WithDescription("Number of failed settings/usage writes"))
	if err != nil {
		return nil, err
	}

	m.ResolutionDuration, err = meter.Float64Histogram("tenancy.resolution.duration_seconds",
		metric.WithDescription("End-to-end resolution duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
