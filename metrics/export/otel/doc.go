// Package otel publishes goSession counters through an OpenTelemetry meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per histogram bucket. Callers own the MeterProvider.
package otel
