// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mgutz/ansi"
	"github.com/spf13/cobra"

	"ipfix-enricher/internal/logview"
)

const (
	// monitorHistory holds up to five minutes of statistics blocks.
	monitorHistory = 300
	// The error alert fires when the error counter grew by more than
	// errorRateLimit over the last errorRateWindow samples.
	errorRateWindow = 10
	errorRateLimit  = 100

	monitorWidth = 78
	sparkWidth   = 48
)

var (
	monitorHeaderColor = ansi.ColorCode("blue+b")
	monitorAlertColor  = ansi.ColorCode("red+b")
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard built from the daemon log",
	Long: `Render a full-screen dashboard of the relay's health, refreshed every
second from the daemon log.

The monitor follows the log, collects each statistics block and keeps
five minutes of history, shown as sparkline graphs below the current
numbers. Alerts appear at the top when the success rate drops below 50%,
the buffer exceeds 5000 packets, or errors grow faster than 100 per
sample window.

Examples:
  ipfix-enricher monitor
  ipfix-enricher monitor -l /tmp/test.log`,
	Run: func(cmd *cobra.Command, args []string) {
		runMonitorCommand()
	},
}

func runMonitorCommand() {
	path := viewerLogFile()
	if _, err := os.Stat(path); err != nil {
		exitWithError(fmt.Sprintf("log file not found: %s", path), nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := newMonitorState()

	// The follower replays the whole log first, so history fills with
	// whatever blocks the file already holds.
	followErr := make(chan error, 1)
	go func() {
		followErr <- logview.Follow(ctx, path, -1, st.feed)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		fmt.Print(renderMonitor(st, path))

		select {
		case <-ctx.Done():
			fmt.Println("\nMonitor stopped.")
			return
		case err := <-followErr:
			if err != nil {
				exitWithError("failed to follow log", err)
			}
			fmt.Println("\nMonitor stopped.")
			return
		case <-ticker.C:
		}
	}
}

// monitorState accumulates parsed statistics blocks from the log follower
// and keeps sample history for the graphs.
type monitorState struct {
	mu      sync.Mutex
	current logview.Metrics
	have    bool

	successRate *logview.Ring
	ppsOut      *logview.Ring
	enrichRate  *logview.Ring
	errors      *logview.Ring
	bufferSize  *logview.Ring

	// Block assembly is confined to the follower goroutine.
	block   []string
	inBlock bool
}

func newMonitorState() *monitorState {
	return &monitorState{
		successRate: logview.NewRing(monitorHistory),
		ppsOut:      logview.NewRing(monitorHistory),
		enrichRate:  logview.NewRing(monitorHistory),
		errors:      logview.NewRing(monitorHistory),
		bufferSize:  logview.NewRing(monitorHistory),
	}
}

// feed assembles statistics blocks line by line. A block runs from its
// "Statistics:" header to the next "=" frame line.
func (st *monitorState) feed(line string) {
	if strings.Contains(line, "Statistics:") {
		st.inBlock = true
		st.block = append(st.block[:0], line)
		return
	}
	if !st.inBlock {
		return
	}
	if strings.Contains(line, strings.Repeat("=", 40)) {
		st.inBlock = false
		st.finishBlock()
		return
	}
	st.block = append(st.block, line)
}

func (st *monitorState) finishBlock() {
	m, ok := logview.ParseBlock(strings.Join(st.block, "\n"))
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = m
	st.have = true
	st.successRate.Push(m.SuccessRate)
	st.ppsOut.Push(m.OutPPS)
	st.enrichRate.Push(m.EnrichRate)
	st.errors.Push(float64(m.Errors))
	buf := m.BufferCurrent
	if buf < 0 {
		buf = 0
	}
	st.bufferSize.Push(float64(buf))
}

func (st *monitorState) activeAlertsLocked() []string {
	var alerts []string
	if st.have && st.current.SuccessRate < 50 {
		alerts = append(alerts, fmt.Sprintf("LOW SUCCESS RATE: %.1f%%", st.current.SuccessRate))
	}
	if st.have && st.current.BufferCurrent > 5000 {
		alerts = append(alerts, fmt.Sprintf("HIGH BUFFER: %d packets", st.current.BufferCurrent))
	}
	if delta := st.errors.Delta(errorRateWindow); delta > errorRateLimit {
		alerts = append(alerts, fmt.Sprintf("HIGH ERROR RATE: %.0f errors/sample", delta))
	}
	return alerts
}

func renderMonitor(st *monitorState, path string) string {
	st.mu.Lock()
	defer st.mu.Unlock()

	var b strings.Builder
	b.WriteString("\033[2J\033[H")

	writeCentered(&b, monitorHeaderColor, "IPFIX Enricher Monitor")
	writeCentered(&b, statsCyan, "Monitoring: "+path)
	b.WriteString(strings.Repeat("-", monitorWidth) + "\n")

	if alerts := st.activeAlertsLocked(); len(alerts) > 0 {
		b.WriteString(monitorAlertColor + "! ALERTS:" + ansi.Reset + "\n")
		if len(alerts) > 3 {
			alerts = alerts[:3]
		}
		for _, a := range alerts {
			b.WriteString("  " + statsRed + "* " + a + ansi.Reset + "\n")
		}
		b.WriteString("\n")
	}

	m := st.current
	bufCur, bufPeak := m.BufferCurrent, m.BufferPeak
	if bufCur < 0 {
		bufCur = 0
	}
	if bufPeak < 0 {
		bufPeak = 0
	}
	enrichColor := gradeAbove(m.EnrichRate, 95, 80)
	successColor := gradeAbove(m.SuccessRate, 90, 70)
	errColor := statsRed
	switch {
	case m.Errors == 0:
		errColor = statsGreen
	case m.Errors < 100:
		errColor = statsYellow
	}
	bufColor := gradeBelow(float64(bufCur), 1000, 5000)

	b.WriteString(sectionHeader("PROCESSING"))
	b.WriteString(statRow(
		stat("Uptime", formatUptime(m.Uptime), statsCyan),
		stat("MTU", fmt.Sprintf("%d bytes", m.MTU), statsCyan)))
	b.WriteString(statRow(
		stat("Processed", statsComma.Sprintf("%d packets", m.Processed), ""),
		stat("Rate In", fmt.Sprintf("%.1f pps / %.2f Mbps", m.InPPS, m.InMbps), "")))
	b.WriteString(statRow(
		stat("Enriched", statsComma.Sprintf("%d (%.1f%%)", m.Enriched, m.EnrichRate), enrichColor),
		stat("Pattern Match", fmt.Sprintf("%.1f%%", m.MatchRate), enrichColor)))
	b.WriteString("\n")

	b.WriteString(sectionHeader("FORWARDING"))
	b.WriteString(statRow(
		stat("Sent", statsComma.Sprintf("%d (%.1f%%)", m.Sent, m.SuccessRate), successColor),
		stat("Rate Out", fmt.Sprintf("%.1f pps / %.2f Mbps", m.OutPPS, m.OutMbps), "")))
	b.WriteString(statRow(
		stat("Errors", statsComma.Sprintf("%d", m.Errors), errColor),
		stat("Dropped", statsComma.Sprintf("%d", m.Dropped), errColor)))
	b.WriteString("\n")

	b.WriteString(sectionHeader("BUFFER & MEMORY"))
	b.WriteString(statRow(
		stat("Buffer Size", statsComma.Sprintf("%d / %d peak", bufCur, bufPeak), bufColor),
		stat("Memory", fmt.Sprintf("%.1f MB", m.MemoryMB), statsCyan)))
	b.WriteString("\n")

	b.WriteString(sectionHeader("PERFORMANCE GRAPHS"))
	b.WriteString(graphRow("Success Rate", st.successRate, "%", successColor))
	b.WriteString(graphRow("Packets/sec Out", st.ppsOut, " pps", statsCyan))
	b.WriteString(graphRow("Buffer Size", st.bufferSize, "", bufColor))
	b.WriteString(graphRow("Enrichment Rate", st.enrichRate, "%", enrichColor))
	b.WriteString("\n")

	writeCentered(&b, statsCyan, "Ctrl+C: quit | refresh: 1s")
	return b.String()
}

func writeCentered(b *strings.Builder, color, text string) {
	pad := (monitorWidth - len(text)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(color + text + ansi.Reset + "\n")
}

func sectionHeader(name string) string {
	return monitorHeaderColor + name + ansi.Reset + "\n"
}

// stat renders one "Label: value" cell, label in cyan, value in the
// given color (terminal default when empty).
func stat(label, value, color string) string {
	if color == "" {
		return statsCyan + label + ":" + ansi.Reset + " " + value
	}
	return statsCyan + label + ":" + ansi.Reset + " " + color + value + ansi.Reset
}

// statRow lays out two cells in fixed columns. Escape sequences carry no
// width, so padding is computed on the stripped text.
func statRow(left, right string) string {
	pad := monitorWidth/2 - printedWidth(left)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right + "\n"
}

func graphRow(label string, ring *logview.Ring, unit, color string) string {
	spark := logview.Sparkline(ring.Values(), sparkWidth)
	if pad := sparkWidth - len([]rune(spark)); pad > 0 {
		spark += strings.Repeat(" ", pad)
	}
	min, avg, max := ring.MinAvgMax()
	return fmt.Sprintf("  %-16s %s%s%s cur %.1f%s (min %.1f / avg %.1f / max %.1f)\n",
		label+":", color, spark, ansi.Reset, ring.Last(), unit, min, avg, max)
}

var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

func printedWidth(s string) int {
	return len([]rune(ansiPattern.ReplaceAllString(s, "")))
}

func gradeAbove(v, good, warn float64) string {
	switch {
	case v > good:
		return statsGreen
	case v > warn:
		return statsYellow
	default:
		return statsRed
	}
}

func gradeBelow(v, good, warn float64) string {
	switch {
	case v < good:
		return statsGreen
	case v < warn:
		return statsYellow
	default:
		return statsRed
	}
}
