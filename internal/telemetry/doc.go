// Package telemetry provides OpenTelemetry metrics for registryd.
//
// Metrics are collected through the otel metric API and exported via a
// Prometheus reader; the HTTP API serves them on /metrics.
package telemetry
