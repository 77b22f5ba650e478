package stats

import (
	"fmt"
	"sync"
	"time"

	"ipfix-enricher/internal/metrics"
)

// Collector is the single owner of the runtime counters. The receive loop,
// the sender and the reporter all mutate state through its methods only, so
// no counter is ever touched without the lock.
type Collector struct {
	mu sync.Mutex

	processed     int64
	enriched      int64
	sent          int64
	errors        int64
	oversized     int64
	ipv4Matched   int64
	ipv6Matched   int64
	asZeroFound   int64
	asReplaced    int64
	bytesReceived int64
	bytesSent     int64

	bufferMax     int
	maxPacketSeen int
	lastPacketAt  time.Time

	errorTypes map[string]int64
	sizeDist   map[string]int64

	debugMode  bool
	debugShown int
	debugMax   int
}

// Snapshot is a deep copy of the counters at one instant.
type Snapshot struct {
	Processed     int64
	Enriched      int64
	Sent          int64
	Errors        int64
	Oversized     int64
	IPv4Matched   int64
	IPv6Matched   int64
	ASZeroFound   int64
	ASReplaced    int64
	BytesReceived int64
	BytesSent     int64

	BufferMax     int
	MaxPacketSeen int
	LastPacketAt  time.Time

	ErrorTypes map[string]int64
	SizeDist   map[string]int64
}

func NewCollector(debugMode bool, debugMax int) *Collector {
	return &Collector{
		errorTypes: make(map[string]int64),
		sizeDist:   make(map[string]int64),
		debugMode:  debugMode,
		debugMax:   debugMax,
	}
}

// PacketReceived records one inbound datagram of the given size.
func (c *Collector) PacketReceived(size int) {
	bucket := sizeBucket(size)

	c.mu.Lock()
	c.processed++
	c.bytesReceived += int64(size)
	c.lastPacketAt = time.Now()
	if size > c.maxPacketSeen {
		c.maxPacketSeen = size
	}
	c.sizeDist[bucket]++
	c.mu.Unlock()

	metrics.PacketsProcessed.Inc()
	metrics.BytesReceived.Add(float64(size))
	metrics.PacketSizes.WithLabelValues(bucket).Inc()
}

func sizeBucket(size int) string {
	lo := size / 100 * 100
	return fmt.Sprintf("%d-%d", lo, lo+100)
}

// Matched records which address families triggered on a packet.
func (c *Collector) Matched(ipv4, ipv6 bool) {
	c.mu.Lock()
	if ipv4 {
		c.ipv4Matched++
	}
	if ipv6 {
		c.ipv6Matched++
	}
	c.mu.Unlock()

	if ipv4 {
		metrics.PatternMatches.WithLabelValues("ipv4").Inc()
	}
	if ipv6 {
		metrics.PatternMatches.WithLabelValues("ipv6").Inc()
	}
}

func (c *Collector) ASZeroFound(n int) {
	c.mu.Lock()
	c.asZeroFound += int64(n)
	c.mu.Unlock()
	metrics.ASZeroFound.Add(float64(n))
}

func (c *Collector) ASReplaced(n int) {
	c.mu.Lock()
	c.asReplaced += int64(n)
	c.mu.Unlock()
	metrics.ASReplaced.Add(float64(n))
}

func (c *Collector) Enriched() {
	c.mu.Lock()
	c.enriched++
	c.mu.Unlock()
	metrics.PacketsEnriched.Inc()
}

// Sent records one successfully transmitted datagram and its size.
func (c *Collector) Sent(n int) {
	c.mu.Lock()
	c.sent++
	c.bytesSent += int64(n)
	c.mu.Unlock()

	metrics.PacketsSent.Inc()
	metrics.BytesSent.Add(float64(n))
}

// Oversized counts a packet dropped for exceeding the transmission ceiling
// and returns the new total so the caller can log the first occurrence only.
func (c *Collector) Oversized() int64 {
	metrics.PacketsOversized.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.oversized++
	return c.oversized
}

// SendError counts one failed transmission under the given error name and
// returns the new error total.
func (c *Collector) SendError(name string) int64 {
	metrics.SendErrors.WithLabelValues(name).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
	c.errorTypes[name]++
	return c.errors
}

// BufferPeak tracks the high-water mark of the relay buffer.
func (c *Collector) BufferPeak(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if size > c.bufferMax {
		c.bufferMax = size
	}
}

// BufferMax reports the buffer high-water mark recorded so far.
func (c *Collector) BufferMax() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferMax
}

// MaxPacketSeen reports the largest datagram received so far.
func (c *Collector) MaxPacketSeen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxPacketSeen
}

// DebugActive reports whether verbose per-packet sampling is still on.
func (c *Collector) DebugActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debugMode && c.debugShown < c.debugMax
}

// MarkDebugShown records that one matching packet was sampled.
func (c *Collector) MarkDebugShown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugShown++
}

// EnrichSample reports whether an enrichment should still be logged in
// detail. Sampling stops after the first few enriched packets.
func (c *Collector) EnrichSample() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debugMode && c.enriched < 5
}

// DisableDebug turns per-packet sampling off and reports whether it had
// been on, so the caller logs the transition exactly once.
func (c *Collector) DisableDebug() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.debugMode
	c.debugMode = false
	return was
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Processed:     c.processed,
		Enriched:      c.enriched,
		Sent:          c.sent,
		Errors:        c.errors,
		Oversized:     c.oversized,
		IPv4Matched:   c.ipv4Matched,
		IPv6Matched:   c.ipv6Matched,
		ASZeroFound:   c.asZeroFound,
		ASReplaced:    c.asReplaced,
		BytesReceived: c.bytesReceived,
		BytesSent:     c.bytesSent,
		BufferMax:     c.bufferMax,
		MaxPacketSeen: c.maxPacketSeen,
		LastPacketAt:  c.lastPacketAt,
		ErrorTypes:    make(map[string]int64, len(c.errorTypes)),
		SizeDist:      make(map[string]int64, len(c.sizeDist)),
	}
	for k, v := range c.errorTypes {
		snap.ErrorTypes[k] = v
	}
	for k, v := range c.sizeDist {
		snap.SizeDist[k] = v
	}
	return snap
}
