// Package logview reads the daemon's log back for the viewer commands:
// statistics block extraction and parsing, follow-mode tailing and ANSI
// colorization.
package logview

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Metrics is one parsed statistics block. Fields for optional sections
// keep their zero value when the section was absent; the buffer gauges use
// -1 so an empty buffer is distinguishable from a missing section.
type Metrics struct {
	Timestamp string
	Uptime    int
	MTU       int

	IPv4Matches int64
	IPv6Matches int64
	MatchRate   float64
	ASFound     int64
	ASReplaced  int64

	Processed  int64
	InPPS      float64
	InMbps     float64
	Enriched   int64
	EnrichRate float64
	MaxPacket  int

	Sent        int64
	SuccessRate float64
	Oversized   int64
	Dropped     int64
	Errors      int64
	OutPPS      float64
	OutMbps     float64

	BufferCurrent int
	BufferPeak    int

	MemoryMB float64
}

// blockDelim tolerates shortened delimiter runs, matching what the
// original viewers accepted.
var blockDelim = regexp.MustCompile(`={50,}`)

var (
	reTimestamp  = regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] Statistics:`)
	reUptime     = regexp.MustCompile(`Uptime: (\d+)s`)
	reMTU        = regexp.MustCompile(`MTU: (\d+) bytes`)
	reIPv4       = regexp.MustCompile(`IPv4 matches: ([\d,]+) packets`)
	reIPv6       = regexp.MustCompile(`IPv6 matches: ([\d,]+) packets`)
	reMatchRate  = regexp.MustCompile(`Total match rate: ([\d.]+)%`)
	reASFound    = regexp.MustCompile(`AS 0 found: ([\d,]+) occurrences`)
	reASReplaced = regexp.MustCompile(`AS replaced: ([\d,]+) times`)
	reProcessed  = regexp.MustCompile(`Processed: ([\d,]+) packets \(([\d.]+) pps, ([\d.]+) Mbps\)`)
	reEnriched   = regexp.MustCompile(`Enriched: ([\d,]+) \(([\d.]+)%\)`)
	reMaxPacket  = regexp.MustCompile(`Max packet size: (\d+) bytes`)
	reSent       = regexp.MustCompile(`Sent: ([\d,]+) \(([\d.]+)% success\)`)
	reOversized  = regexp.MustCompile(`Oversized dropped: ([\d,]+)`)
	reDropped    = regexp.MustCompile(`Buffer dropped: ([\d,]+)`)
	reErrors     = regexp.MustCompile(`Errors: ([\d,]+)`)
	reOutRate    = regexp.MustCompile(`Rate: ([\d.]+) pps, ([\d.]+) Mbps`)
	reBufCurrent = regexp.MustCompile(`Current size: (\d+)`)
	reBufPeak    = regexp.MustCompile(`Peak size: (\d+)`)
	reMemory     = regexp.MustCompile(`Memory: RSS ([\d.]+) MB`)
)

// ExtractLastBlock returns the newest statistics block in the log, without
// its "=" frame.
func ExtractLastBlock(r io.Reader) (string, bool) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", false
	}
	blocks := blockDelim.Split(string(content), -1)
	for i := len(blocks) - 1; i >= 0; i-- {
		if strings.Contains(blocks[i], "Statistics:") {
			return blocks[i], true
		}
	}
	return "", false
}

// ParseBlock pulls the metrics out of one statistics block. ok is false
// when the text carries no parseable uptime line, the one line every
// report has.
func ParseBlock(block string) (Metrics, bool) {
	m := Metrics{BufferCurrent: -1, BufferPeak: -1}

	if g := reUptime.FindStringSubmatch(block); g != nil {
		m.Uptime = atoi(g[1])
	} else {
		return m, false
	}
	if g := reTimestamp.FindStringSubmatch(block); g != nil {
		m.Timestamp = g[1]
	}
	if g := reMTU.FindStringSubmatch(block); g != nil {
		m.MTU = atoi(g[1])
	}
	if g := reIPv4.FindStringSubmatch(block); g != nil {
		m.IPv4Matches = uncomma(g[1])
	}
	if g := reIPv6.FindStringSubmatch(block); g != nil {
		m.IPv6Matches = uncomma(g[1])
	}
	if g := reMatchRate.FindStringSubmatch(block); g != nil {
		m.MatchRate = atof(g[1])
	}
	if g := reASFound.FindStringSubmatch(block); g != nil {
		m.ASFound = uncomma(g[1])
	}
	if g := reASReplaced.FindStringSubmatch(block); g != nil {
		m.ASReplaced = uncomma(g[1])
	}
	if g := reProcessed.FindStringSubmatch(block); g != nil {
		m.Processed = uncomma(g[1])
		m.InPPS = atof(g[2])
		m.InMbps = atof(g[3])
	}
	if g := reEnriched.FindStringSubmatch(block); g != nil {
		m.Enriched = uncomma(g[1])
		m.EnrichRate = atof(g[2])
	}
	if g := reMaxPacket.FindStringSubmatch(block); g != nil {
		m.MaxPacket = atoi(g[1])
	}
	if g := reSent.FindStringSubmatch(block); g != nil {
		m.Sent = uncomma(g[1])
		m.SuccessRate = atof(g[2])
	}
	if g := reOversized.FindStringSubmatch(block); g != nil {
		m.Oversized = uncomma(g[1])
	}
	if g := reDropped.FindStringSubmatch(block); g != nil {
		m.Dropped = uncomma(g[1])
	}
	if g := reErrors.FindStringSubmatch(block); g != nil {
		m.Errors = uncomma(g[1])
	}
	if g := reOutRate.FindStringSubmatch(block); g != nil {
		m.OutPPS = atof(g[1])
		m.OutMbps = atof(g[2])
	}
	if g := reBufCurrent.FindStringSubmatch(block); g != nil {
		m.BufferCurrent = atoi(g[1])
	}
	if g := reBufPeak.FindStringSubmatch(block); g != nil {
		m.BufferPeak = atoi(g[1])
	}
	if g := reMemory.FindStringSubmatch(block); g != nil {
		m.MemoryMB = atof(g[1])
	}
	return m, true
}

// RecentProblems returns the last max ERROR or WARNING lines in file
// order, truncated the way the original viewer showed them.
func RecentProblems(r io.Reader, max int) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.Contains(line, "ERROR") || strings.Contains(line, "WARNING") {
			if len(line) > 80 {
				line = line[:77] + "..."
			}
			lines = append(lines, line)
		}
	}
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}

func uncomma(s string) int64 {
	n, _ := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	return n
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
