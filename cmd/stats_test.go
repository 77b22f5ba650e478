package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0h 0m 0s", formatUptime(0))
	assert.Equal(t, "0h 1m 40s", formatUptime(100))
	assert.Equal(t, "1h 5m 30s", formatUptime(3930))
}

func TestThresholdColors(t *testing.T) {
	assert.Equal(t, statsGreen, rateColor(95, 90, 70))
	assert.Equal(t, statsYellow, rateColor(80, 90, 70))
	assert.Equal(t, statsRed, rateColor(40, 90, 70))

	assert.Equal(t, statsGreen, loadColor(5, 10, 100))
	assert.Equal(t, statsYellow, loadColor(50, 10, 100))
	assert.Equal(t, statsRed, loadColor(500, 10, 100))
}

func TestReadLatestMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enricher.log")
	lines := renderedBlock(t, 9000, 50, 2)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	m, ok := readLatestMetrics(path)

	require.True(t, ok)
	assert.EqualValues(t, 10000, m.Processed)
	assert.EqualValues(t, 9000, m.Sent)
	assert.Equal(t, 100, m.Uptime)
	assert.Equal(t, 1400, m.MTU)
}

func TestReadLatestMetricsNoStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enricher.log")
	require.NoError(t, os.WriteFile(path, []byte("plain line\nanother\n"), 0o644))

	_, ok := readLatestMetrics(path)
	assert.False(t, ok)

	_, ok = readLatestMetrics(filepath.Join(t.TempDir(), "missing.log"))
	assert.False(t, ok)
}

func TestReadRecentProblems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enricher.log")
	content := strings.Join([]string{
		"2026-08-26 12:00:00 - ipfix-enricher - INFO - Service started successfully",
		"2026-08-26 12:00:05 - ipfix-enricher - ERROR - Send error (eperm): operation not permitted",
		"2026-08-26 12:00:06 - ipfix-enricher - WARNING - No packets sent in last 30s",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	problems := readRecentProblems(path)

	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "ERROR")
	assert.Contains(t, problems[1], "WARNING")
}
