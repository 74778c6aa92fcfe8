// Package otel binds engine metrics to OpenTelemetry observable instruments.
//
// Each counter becomes an Int64ObservableCounter and each histogram bucket an
// Int64ObservableGauge carrying its cumulative count. One callback reads the
// engine snapshot per collection. The caller owns the MeterProvider.
package otel
