// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics records domain counters through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config holds metrics configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	ExportInterval time.Duration
}

// Recorder owns the service counters. It satisfies the metrics interfaces of
// the project, revision and billing packages.
type Recorder struct {
	transitions   metric.Int64Counter
	billingEvents metric.Int64Counter
	provider      *sdkmetric.MeterProvider
}

// New creates a recorder. When metrics are enabled it installs a global SDK
// meter provider that pushes to the OTLP endpoint from the standard
// OTEL_EXPORTER_OTLP_* variables; otherwise counters are no-ops.
func New(ctx context.Context, cfg Config) (*Recorder, error) {
	if !cfg.Enabled {
		return NewWithMeter(noop.NewMeterProvider().Meter(cfg.ServiceName))
	}

	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = time.Minute
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	rec, err := NewWithMeter(provider.Meter(cfg.ServiceName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	rec.provider = provider
	return rec, nil
}

// Shutdown flushes pending measurements.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r.provider != nil {
		return r.provider.Shutdown(ctx)
	}
	return nil
}

// NewWithMeter creates a recorder on m.
func NewWithMeter(m metric.Meter) (*Recorder, error) {
	transitions, err := m.Int64Counter("atelier.project.transitions",
		metric.WithDescription("Project status transitions by operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter atelier.project.transitions: %w", err)
	}
	billingEvents, err := m.Int64Counter("atelier.billing.events",
		metric.WithDescription("Payment provider events by type and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter atelier.billing.events: %w", err)
	}
	return &Recorder{transitions: transitions, billingEvents: billingEvents}, nil
}

// RecordTransition counts one project status change.
func (r *Recorder) RecordTransition(ctx context.Context, operation, from, to string) {
	r.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordBillingEvent counts one handled provider event.
func (r *Recorder) RecordBillingEvent(ctx context.Context, eventType, outcome string) {
	r.billingEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}
