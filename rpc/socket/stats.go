package socket

import (
	"github.com/rcrowley/go-metrics"
)

// Stats holds the statistics of a single socket. The metrics live in their own
// registry so sockets in the same process do not share counters.
type Stats struct {
	Registry metrics.Registry

	MessagesSent     metrics.Counter   // frames handed to a connection
	MessagesSkipped  metrics.Counter   // frames not sent because a connection was not writable
	MessagesReceived metrics.Counter   // decoded messages (before filtering)
	MessagesFiltered metrics.Counter   // decoded messages rejected by the behavior
	MessagesDropped  metrics.Counter   // messages dropped at the high-water-mark
	MessagesFlushed  metrics.Counter   // messages sent from the outbound queue
	Errors           metrics.Counter   // transport errors (ignorable and fatal)
	Reconnects       metrics.Counter   // reconnection attempts
	Connections      metrics.Gauge     // currently open connections
	FrameSize        metrics.Histogram // size of sent frames in bytes
}

func newStats() *Stats {
	r := metrics.NewRegistry()
	return &Stats{
		Registry:         r,
		MessagesSent:     metrics.NewRegisteredCounter("messages.sent", r),
		MessagesSkipped:  metrics.NewRegisteredCounter("messages.skipped", r),
		MessagesReceived: metrics.NewRegisteredCounter("messages.received", r),
		MessagesFiltered: metrics.NewRegisteredCounter("messages.filtered", r),
		MessagesDropped:  metrics.NewRegisteredCounter("messages.dropped", r),
		MessagesFlushed:  metrics.NewRegisteredCounter("messages.flushed", r),
		Errors:           metrics.NewRegisteredCounter("errors", r),
		Reconnects:       metrics.NewRegisteredCounter("reconnects", r),
		Connections:      metrics.NewRegisteredGauge("connections", r),
		FrameSize:        metrics.NewRegisteredHistogram("frame.size", r, metrics.NewUniformSample(1028)),
	}
}

// Snapshot returns the current value of every counter and gauge, and the mean
// frame size, keyed by metric name
func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	s.Registry.Each(func(name string, m interface{}) {
		switch metric := m.(type) {
		case metrics.Counter:
			out[name] = metric.Count()
		case metrics.Gauge:
			out[name] = metric.Value()
		case metrics.Histogram:
			out[name+".mean"] = int64(metric.Mean())
			out[name+".max"] = metric.Max()
		}
	})
	return out
}
