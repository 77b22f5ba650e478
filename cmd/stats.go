// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mgutz/ansi"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ipfix-enricher/internal/logview"
)

var (
	statsRed    = ansi.ColorCode("red")
	statsGreen  = ansi.ColorCode("green")
	statsYellow = ansi.ColorCode("yellow")
	statsBlue   = ansi.ColorCode("blue")
	statsCyan   = ansi.ColorCode("cyan")
)

var statsComma = message.NewPrinter(language.English)

var statsCmd = &cobra.Command{
	Use:   "stats [refresh-seconds]",
	Short: "Periodic statistics screen from the daemon log",
	Long: `Show the latest statistics block from the daemon log on a screen that
refreshes in place.

The daemon writes its statistics to the log, so this needs no connection
to the process: point it at the same log file and it renders success
rate, traffic, enrichment and buffer health, colored by threshold.

Examples:
  ipfix-enricher stats              # refresh every 5 seconds
  ipfix-enricher stats 2            # refresh every 2 seconds
  ipfix-enricher stats -l /tmp/test.log`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		refresh := 5
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				exitWithError(fmt.Sprintf("invalid refresh rate %q", args[0]), nil)
			}
			refresh = n
		}
		runStatsViewer(refresh)
	},
}

func runStatsViewer(refreshSeconds int) {
	path := viewerLogFile()
	if _, err := os.Stat(path); err != nil {
		exitWithError(fmt.Sprintf("log file not found: %s", path), nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%sIPFIX Enricher Stats - Refresh every %ds (Ctrl+C to exit)%s\n",
		statsBlue, refreshSeconds, ansi.Reset)
	fmt.Println(strings.Repeat("=", 60))

	ticker := time.NewTicker(time.Duration(refreshSeconds) * time.Second)
	defer ticker.Stop()

	for {
		renderStatsScreen(path)
		fmt.Printf("\n%s\n", strings.Repeat("-", 60))
		fmt.Printf("Refreshing in %d seconds...\n", refreshSeconds)

		select {
		case <-ctx.Done():
			fmt.Printf("\n\n%sExiting...%s\n", statsBlue, ansi.Reset)
			return
		case <-ticker.C:
		}
	}
}

func renderStatsScreen(path string) {
	m, ok := readLatestMetrics(path)

	// Wipe the screen and home the cursor.
	fmt.Print("\033[2J\033[H")
	fmt.Printf("%sIPFIX Enricher Stats - %s%s\n",
		statsBlue, time.Now().Format("2006-01-02 15:04:05"), ansi.Reset)
	fmt.Println(strings.Repeat("=", 60))

	if !ok {
		fmt.Println("\nWaiting for statistics...")
		return
	}

	fmt.Printf("\nUptime: %s%s%s\n", statsCyan, formatUptime(m.Uptime), ansi.Reset)

	fmt.Printf("\nSuccess Rate: %s%.1f%%%s\n",
		rateColor(m.SuccessRate, 90, 70), m.SuccessRate, ansi.Reset)

	fmt.Println("\nTraffic:")
	fmt.Printf("  In:  %.1f pps / %.2f Mbps\n", m.InPPS, m.InMbps)
	fmt.Printf("  Out: %.1f pps / %.2f Mbps\n", m.OutPPS, m.OutMbps)
	fmt.Printf("  Enrichment: %s%.1f%%%s\n",
		rateColor(m.EnrichRate, 95, 80), m.EnrichRate, ansi.Reset)
	fmt.Printf("  Pattern Match: %s%.1f%%%s\n",
		rateColor(m.MatchRate, 95, 80), m.MatchRate, ansi.Reset)

	fmt.Println("\nHealth:")
	fmt.Printf("  Errors: %s%s%s\n",
		loadColor(float64(m.Errors), 10, 100), statsComma.Sprintf("%d", m.Errors), ansi.Reset)
	if m.BufferCurrent >= 0 {
		peak := ""
		if m.BufferPeak >= 0 {
			peak = fmt.Sprintf(" (peak: %d)", m.BufferPeak)
		}
		fmt.Printf("  Buffer: %s%s%s%s\n",
			loadColor(float64(m.BufferCurrent), 1000, 5000),
			statsComma.Sprintf("%d", m.BufferCurrent), ansi.Reset, peak)
	}
	if m.Oversized > 0 {
		fmt.Printf("  Oversized dropped: %s%s%s\n",
			statsYellow, statsComma.Sprintf("%d", m.Oversized), ansi.Reset)
	}
	if m.Dropped > 0 {
		fmt.Printf("  Buffer dropped: %s%s%s\n",
			statsRed, statsComma.Sprintf("%d", m.Dropped), ansi.Reset)
	}
	fmt.Printf("  Memory: %.1f MB\n", m.MemoryMB)

	fmt.Println("\nCounts:")
	fmt.Printf("  Processed: %s packets\n", statsComma.Sprintf("%d", m.Processed))
	fmt.Printf("  Sent: %s packets\n", statsComma.Sprintf("%d", m.Sent))

	if m.Errors > 0 {
		if problems := readRecentProblems(path); len(problems) > 0 {
			fmt.Printf("\n%sRecent Errors:%s\n", statsYellow, ansi.Reset)
			for _, p := range problems {
				fmt.Printf("  %s\n", p)
			}
		}
	}

	var alerts []string
	if m.SuccessRate < 50 {
		alerts = append(alerts, statsRed+"ALERT: Low success rate!"+ansi.Reset)
	}
	if m.BufferCurrent > 5000 {
		alerts = append(alerts, statsYellow+"WARNING: High buffer usage!"+ansi.Reset)
	}
	if m.Errors > 1000 {
		alerts = append(alerts, statsRed+"ALERT: High error count!"+ansi.Reset)
	}
	if len(alerts) > 0 {
		fmt.Println("\nAlerts:")
		for _, a := range alerts {
			fmt.Printf("  %s\n", a)
		}
	}
}

func readLatestMetrics(path string) (logview.Metrics, bool) {
	f, err := os.Open(path)
	if err != nil {
		return logview.Metrics{}, false
	}
	defer f.Close()

	block, ok := logview.ExtractLastBlock(f)
	if !ok {
		return logview.Metrics{}, false
	}
	return logview.ParseBlock(block)
}

func readRecentProblems(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	return logview.RecentProblems(f, 3)
}

func formatUptime(seconds int) string {
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}

// rateColor maps a higher-is-better percentage onto green/yellow/red.
func rateColor(v, good, warn float64) string {
	switch {
	case v >= good:
		return statsGreen
	case v >= warn:
		return statsYellow
	default:
		return statsRed
	}
}

// loadColor is rateColor for lower-is-better values.
func loadColor(v, good, warn float64) string {
	switch {
	case v <= good:
		return statsGreen
	case v <= warn:
		return statsYellow
	default:
		return statsRed
	}
}
