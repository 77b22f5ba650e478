package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var grouped = message.NewPrinter(language.English)

// Comma renders n with thousands separators, the number format the stats
// block uses and the viewer commands parse back.
func Comma(n int64) string {
	return grouped.Sprintf("%d", n)
}

// ReportData carries everything one statistics report needs: a counter
// snapshot plus the state owned elsewhere (buffer occupancy and drops, the
// sender's current ceiling, process memory).
type ReportData struct {
	Stats       Snapshot
	Dropped     int64
	BufferSize  int
	Uptime      time.Duration
	MTU         int
	Destination string
	MemoryMB    float64
	Timestamp   time.Time
}

func (d ReportData) seconds() float64 {
	return d.Uptime.Seconds()
}

func (d ReportData) InPPS() float64 {
	if s := d.seconds(); s > 0 {
		return float64(d.Stats.Processed) / s
	}
	return 0
}

func (d ReportData) OutPPS() float64 {
	if s := d.seconds(); s > 0 {
		return float64(d.Stats.Sent) / s
	}
	return 0
}

func (d ReportData) InMbps() float64 {
	if s := d.seconds(); s > 0 {
		return float64(d.Stats.BytesReceived) * 8 / 1048576 / s
	}
	return 0
}

func (d ReportData) OutMbps() float64 {
	if s := d.seconds(); s > 0 {
		return float64(d.Stats.BytesSent) * 8 / 1048576 / s
	}
	return 0
}

func (d ReportData) percentOfProcessed(n int64) float64 {
	if d.Stats.Processed > 0 {
		return float64(n) / float64(d.Stats.Processed) * 100
	}
	return 0
}

func (d ReportData) SuccessRate() float64 {
	return d.percentOfProcessed(d.Stats.Sent)
}

func (d ReportData) EnrichRate() float64 {
	return d.percentOfProcessed(d.Stats.Enriched)
}

func (d ReportData) MatchRate() float64 {
	return d.percentOfProcessed(d.Stats.IPv4Matched + d.Stats.IPv6Matched)
}

func (d ReportData) DropRate() float64 {
	return d.percentOfProcessed(d.Dropped)
}

func (d ReportData) OversizedRate() float64 {
	return d.percentOfProcessed(d.Stats.Oversized)
}

// Render produces the statistics block exactly as it goes to the log: a
// 60-char "=" frame, fixed labeled lines, and the optional sections only
// when they carry data. The stats, tail and monitor commands parse this
// text, so the layout is a contract.
func (d ReportData) Render() string {
	s := d.Stats

	lines := []string{
		"\n" + strings.Repeat("=", 60),
		fmt.Sprintf("[%s] Statistics:", d.Timestamp.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Uptime: %ds | MTU: %d bytes", int(d.Uptime.Seconds()), d.MTU),
		"\nPattern Detection:",
		fmt.Sprintf("  IPv4 matches: %s packets", Comma(s.IPv4Matched)),
		fmt.Sprintf("  IPv6 matches: %s packets", Comma(s.IPv6Matched)),
		fmt.Sprintf("  Total match rate: %.1f%%", d.MatchRate()),
	}

	if s.ASZeroFound > 0 {
		lines = append(lines,
			fmt.Sprintf("  AS 0 found: %s occurrences", Comma(s.ASZeroFound)),
			fmt.Sprintf("  AS replaced: %s times", Comma(s.ASReplaced)),
		)
	}

	lines = append(lines,
		"\nProcessing:",
		fmt.Sprintf("  Processed: %s packets (%.1f pps, %.2f Mbps)", Comma(s.Processed), d.InPPS(), d.InMbps()),
		fmt.Sprintf("  Enriched: %s (%.1f%%)", Comma(s.Enriched), d.EnrichRate()),
		fmt.Sprintf("  Max packet size: %d bytes", s.MaxPacketSeen),
		fmt.Sprintf("\nForwarding to %s:", d.Destination),
		fmt.Sprintf("  Sent: %s (%.1f%% success)", Comma(s.Sent), d.SuccessRate()),
		fmt.Sprintf("  Oversized dropped: %s (%.1f%%)", Comma(s.Oversized), d.OversizedRate()),
		fmt.Sprintf("  Buffer dropped: %s (%.1f%%)", Comma(d.Dropped), d.DropRate()),
		fmt.Sprintf("  Errors: %s", Comma(s.Errors)),
		fmt.Sprintf("  Rate: %.1f pps, %.2f Mbps", d.OutPPS(), d.OutMbps()),
	)

	if d.BufferSize > 0 || s.BufferMax > 0 {
		lines = append(lines,
			"\nBuffer:",
			fmt.Sprintf("  Current size: %d", d.BufferSize),
			fmt.Sprintf("  Peak size: %d", s.BufferMax),
		)
	}

	if len(s.ErrorTypes) > 0 {
		lines = append(lines, "\nError details:")
		for _, e := range topErrors(s.ErrorTypes, 5) {
			lines = append(lines, fmt.Sprintf("  %s: %d", e.name, e.count))
		}
	}

	if len(s.SizeDist) > 1 {
		lines = append(lines, "\nPacket size distribution:")
		keys := make([]string, 0, len(s.SizeDist))
		for k := range s.SizeDist {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 5 {
			keys = keys[:5]
		}
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  %s: %d", k, s.SizeDist[k]))
		}
	}

	lines = append(lines,
		fmt.Sprintf("\nMemory: RSS %.1f MB", d.MemoryMB),
		strings.Repeat("=", 60),
	)

	return strings.Join(lines, "\n")
}

type errorCount struct {
	name  string
	count int64
}

func topErrors(m map[string]int64, n int) []errorCount {
	out := make([]errorCount, 0, len(m))
	for k, v := range m {
		out = append(out, errorCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
