// Package prometheus exposes goSession counters as a Prometheus collector.
//
// [NewPrometheusExporter] wraps a [goSession.Service]. The exporter can be
// registered with any registry, or mounted directly through Handler.
// Counter names are gosession_*_total; the single histogram is
// gosession_verify_latency_seconds.
package prometheus
