// Package prometheus exposes engine metrics as a client_golang collector.
//
// The exporter reads [portalauth.MetricsSnapshot] at scrape time, so counters
// stay lock-free on the request path. It never registers with the global
// registry; mount [Exporter.Handler] or register the exporter yourself.
package prometheus
