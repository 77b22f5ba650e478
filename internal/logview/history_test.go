package logview

import (
	"strings"
	"testing"

	"github.com/mgutz/ansi"
)

func TestRingWraparound(t *testing.T) {
	r := NewRing(3)
	if r.Len() != 0 || r.Last() != 0 {
		t.Error("Fresh ring not empty")
	}

	r.Push(1)
	r.Push(2)
	if got := r.Values(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Values = %v", got)
	}

	r.Push(3)
	r.Push(4)
	if got := r.Values(); len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Errorf("Values after wrap = %v", got)
	}
	if r.Last() != 4 {
		t.Errorf("Last = %v", r.Last())
	}
}

func TestRingMinAvgMax(t *testing.T) {
	r := NewRing(5)
	for _, v := range []float64{10, 20, 60} {
		r.Push(v)
	}
	min, avg, max := r.MinAvgMax()
	if min != 10 || avg != 30 || max != 60 {
		t.Errorf("MinAvgMax = %v/%v/%v", min, avg, max)
	}

	empty := NewRing(5)
	if min, avg, max := empty.MinAvgMax(); min != 0 || avg != 0 || max != 0 {
		t.Error("Empty ring must report zeros")
	}
}

func TestRingDelta(t *testing.T) {
	r := NewRing(20)
	for i := 0; i <= 15; i++ {
		r.Push(float64(i * 10))
	}
	// Last 10 samples run 60..150.
	if got := r.Delta(10); got != 90 {
		t.Errorf("Delta(10) = %v, want 90", got)
	}
	if got := NewRing(5).Delta(10); got != 0 {
		t.Errorf("Delta on empty ring = %v", got)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 7}, 10); got != "▁█" {
		t.Errorf("Sparkline = %q", got)
	}
	if got := Sparkline([]float64{5, 5, 5}, 10); got != "▁▁▁" {
		t.Errorf("Flat sparkline = %q", got)
	}
	// Downsampled to the last two values.
	if got := Sparkline([]float64{9, 0, 8}, 2); got != "▁█" {
		t.Errorf("Downsampled sparkline = %q", got)
	}
	if got := Sparkline(nil, 10); got != "" {
		t.Errorf("Empty sparkline = %q", got)
	}
}

func TestColorizeLevels(t *testing.T) {
	line := "2026-08-26 12:00:00 - ipfix-enricher - ERROR - Send failed"
	got := Colorize(line)
	if !strings.Contains(got, levelColors["ERROR"]+"ERROR"+ansi.Reset) {
		t.Errorf("ERROR not colored: %q", got)
	}
	if strings.HasPrefix(got, boldStyle) {
		t.Error("Non-statistics line must not be bold")
	}

	got = Colorize("2026-08-26 12:00:00 - ipfix-enricher - DEBUG - probe")
	if !strings.Contains(got, levelColors["DEBUG"]+"DEBUG"+ansi.Reset) {
		t.Errorf("DEBUG not colored: %q", got)
	}
}

func TestColorizeSuccessRate(t *testing.T) {
	got := Colorize("  Sent: 1,200,000 (97.2% success)")
	if !strings.Contains(got, successColor+"97.2% success"+ansi.Reset) {
		t.Errorf("Success rate not green: %q", got)
	}
}

func TestColorizeErrorCount(t *testing.T) {
	if got := Colorize("  Errors: 0"); !strings.Contains(got, successColor+"0"+ansi.Reset) {
		t.Errorf("Zero errors not green: %q", got)
	}
	if got := Colorize("  Errors: 1,234"); !strings.Contains(got, levelColors["ERROR"]+"1,234"+ansi.Reset) {
		t.Errorf("Non-zero errors not red: %q", got)
	}
}

func TestColorizeStatisticsHeaderBold(t *testing.T) {
	got := Colorize("[2026-08-26 12:00:00] Statistics:")
	if !strings.HasPrefix(got, boldStyle) || !strings.HasSuffix(got, ansi.Reset) {
		t.Errorf("Header not bold: %q", got)
	}
}
