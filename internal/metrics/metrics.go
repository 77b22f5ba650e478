// Package metrics implements Prometheus metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsProcessed counts datagrams read off the listen socket.
	PacketsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_packets_processed_total",
			Help: "Total number of datagrams received",
		},
	)

	// PacketsEnriched counts datagrams that had at least one AS rewritten.
	PacketsEnriched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_packets_enriched_total",
			Help: "Total number of datagrams with at least one AS replacement",
		},
	)

	// PacketsSent counts datagrams forwarded to the collector.
	PacketsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_packets_sent_total",
			Help: "Total number of datagrams forwarded to the collector",
		},
	)

	// PacketsOversized counts datagrams dropped for exceeding the ceiling.
	PacketsOversized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_packets_oversized_total",
			Help: "Total number of datagrams dropped for exceeding the transmission ceiling",
		},
	)

	// BufferDropped counts datagrams dropped at the full relay buffer.
	BufferDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_buffer_dropped_total",
			Help: "Total number of datagrams dropped because the relay buffer was full",
		},
	)

	// SendErrors counts failed transmissions by error name.
	SendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_send_errors_total",
			Help: "Total number of failed transmissions",
		},
		[]string{"type"},
	)

	// PatternMatches counts trigger hits by address family.
	PatternMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_pattern_matches_total",
			Help: "Total number of datagrams containing a configured prefix",
		},
		[]string{"family"},
	)

	// ASZeroFound counts zero AS fields seen in matching datagrams.
	ASZeroFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_as_zero_found_total",
			Help: "Total number of zero AS fields found in matching datagrams",
		},
	)

	// ASReplaced counts AS fields rewritten to the target AS.
	ASReplaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_as_replaced_total",
			Help: "Total number of AS fields rewritten to the target AS",
		},
	)

	// BytesReceived and BytesSent track traffic volume.
	BytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_bytes_received_total",
			Help: "Total bytes received",
		},
	)
	BytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_bytes_sent_total",
			Help: "Total bytes forwarded",
		},
	)

	// PacketSizes counts received datagrams per 100-byte size bucket.
	PacketSizes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipfix_enricher_packet_sizes_total",
			Help: "Received datagrams per 100-byte size bucket",
		},
		[]string{"range"},
	)
)

// Provider is the live view the gauge callbacks read at scrape time. The
// relay service implements it.
type Provider interface {
	BufferLen() int
	BufferPeak() int
	MaxPacketSeen() int
	Ceiling() int
	Uptime() time.Duration
}

var registerOnce sync.Once

// RegisterService wires the scrape-time gauges to a running service.
// Registration is process-wide; repeat calls are no-ops.
func RegisterService(p Provider) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "ipfix_enricher_buffer_packets",
				Help: "Datagrams currently queued in the relay buffer",
			}, func() float64 { return float64(p.BufferLen()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "ipfix_enricher_buffer_peak_packets",
				Help: "High-water mark of the relay buffer",
			}, func() float64 { return float64(p.BufferPeak()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "ipfix_enricher_packet_size_max_bytes",
				Help: "Largest datagram received so far",
			}, func() float64 { return float64(p.MaxPacketSeen()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "ipfix_enricher_transmission_ceiling_bytes",
				Help: "Current transmission size ceiling",
			}, func() float64 { return float64(p.Ceiling()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "ipfix_enricher_uptime_seconds",
				Help: "Seconds since the service started",
			}, func() float64 { return p.Uptime().Seconds() }),
		)
	})
}
