// Package otel provides OpenTelemetry metric exporter bindings for
// authcore counters.
//
// [NewExporter] registers one Int64ObservableCounter per authcore
// metric plus an audit-drop counter. A single callback reads
// [authcore.Service.MetricsSnapshot] on each collection cycle, so the
// hot path inside the service stays a plain atomic add.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate service state.
package otel
