// Package telemetry exposes process-wide counters for dMQ sockets in the
// Prometheus text format, backed by VictoriaMetrics/metrics.
//
// Every event emitted by any socket increments dmq_socket_events_total with
// the event kind as label, and the connection readers and writers account the
// bytes they move in dmq_transport_bytes_total. Per-socket statistics live in
// the socket package (see socket.Stats); this package only aggregates across
// sockets so a process can serve a single /metrics endpoint.
package telemetry
