package relay

import (
	"bytes"
	"encoding/binary"

	"ipfix-enricher/internal/config"
	"ipfix-enricher/internal/log"
	"ipfix-enricher/internal/stats"
)

// minScanSize: datagrams shorter than this cannot hold a flow record and
// pass through untouched.
const minScanSize = 20

// Enricher rewrites the zero AS field in packets carrying one of the
// trigger address prefixes. It scans raw payload bytes and never decodes
// IPFIX structure, so a marker can in principle match across unrelated
// field boundaries. That heuristic is the deployed behavior and stays.
type Enricher struct {
	ipv4Prefixes [][]byte
	ipv6Prefix   []byte
	asZero       []byte
	asTarget     []byte
	targetAS     uint32

	stats *stats.Collector
	log   log.Logger
}

func NewEnricher(cfg config.EnrichConfig, collector *stats.Collector) *Enricher {
	target := make([]byte, 4)
	binary.BigEndian.PutUint32(target, cfg.TargetAS)

	prefixes := make([][]byte, len(cfg.IPv4Prefixes))
	for i, p := range cfg.IPv4Prefixes {
		prefixes[i] = []byte(p)
	}

	return &Enricher{
		ipv4Prefixes: prefixes,
		ipv6Prefix:   []byte(cfg.IPv6Prefix),
		asZero:       []byte{0, 0, 0, 0},
		asTarget:     target,
		targetAS:     cfg.TargetAS,
		stats:        collector,
		log:          log.GetLogger(),
	}
}

// Enrich replaces every four-byte big-endian zero AS in pkt with the target
// AS when pkt contains a trigger prefix. The returned packet always has the
// same length as the input; the second return reports whether anything was
// rewritten.
func (e *Enricher) Enrich(pkt []byte) ([]byte, bool) {
	if len(pkt) < minScanSize {
		return pkt, false
	}

	sampling := e.stats.DebugActive()

	ipv4 := false
	for i, p := range e.ipv4Prefixes {
		if idx := bytes.Index(pkt, p); idx >= 0 {
			ipv4 = true
			if sampling {
				e.log.Debugf("Found IPv4 pattern #%d (%d.%d.%d.x) at byte %d", i, p[0], p[1], p[2], idx)
			}
			break
		}
	}

	ipv6 := false
	if idx := bytes.Index(pkt, e.ipv6Prefix); idx >= 0 {
		ipv6 = true
		if sampling {
			e.log.Debugf("Found IPv6 pattern at byte %d", idx)
		}
	}

	if !ipv4 && !ipv6 {
		return pkt, false
	}
	e.stats.Matched(ipv4, ipv6)

	found := bytes.Count(pkt, e.asZero)

	if sampling {
		if found > 0 {
			e.log.Debugf("Found %d occurrences of AS 0 to replace", found)
			e.log.Debugf("AS 0 positions: %v", zeroPositions(pkt, e.asZero, 5))
		} else {
			e.log.Debugf("No AS 0 found in packet (searching for %x)", e.asZero)
			head := pkt
			if len(head) > 200 {
				head = head[:200]
			}
			e.log.Debugf("First 200 bytes: %x", head)
		}
		e.stats.MarkDebugShown()
	}

	if found == 0 {
		return pkt, false
	}

	out := bytes.ReplaceAll(pkt, e.asZero, e.asTarget)
	e.stats.ASZeroFound(found)
	e.stats.ASReplaced(found)

	if e.stats.EnrichSample() {
		e.log.Debugf("ENRICHED! Replaced %d AS entries from AS0 to AS%d", found, e.targetAS)
	}
	return out, true
}

// zeroPositions lists the first max sentinel offsets, stepping one byte at
// a time so overlapping alignments inside zero runs each show up.
func zeroPositions(pkt, needle []byte, max int) []int {
	positions := make([]int, 0, max)
	start := 0
	for len(positions) < max {
		i := bytes.Index(pkt[start:], needle)
		if i < 0 {
			break
		}
		positions = append(positions, start+i)
		start += i + 1
	}
	return positions
}
