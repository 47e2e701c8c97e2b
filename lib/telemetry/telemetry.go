package telemetry

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"net/http"
)

// CountEvent increments the process-wide counter of socket events of the given kind
func CountEvent(kind string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dmq_socket_events_total{kind=%q}`, kind)).Inc()
}

// EventCount returns the current value of the counter for kind
func EventCount(kind string) uint64 {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dmq_socket_events_total{kind=%q}`, kind)).Get()
}

// CountBytes adds n to the process-wide counter of bytes moved in the given direction ("in" or "out")
func CountBytes(direction string, n int) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dmq_transport_bytes_total{direction=%q}`, direction)).Add(n)
}

// WritePrometheus writes all process-wide metrics in Prometheus text format
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

// Handler returns an http.Handler serving the Prometheus exposition
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WritePrometheus(w)
	})
}
