package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipfix-enricher/internal/config"
)

func TestPrefixSummary(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t,
		"185.54.80.x, 185.54.81.x, 185.54.82.x, 185.54.83.x, 2a02:4460::/32",
		prefixSummary(cfg))
}

func TestDaemonLogConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	lc := daemonLogConfig(cfg)

	assert.Equal(t, "ipfix-enricher", lc.Name)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "critical", lc.ConsoleLevel)
	assert.Equal(t, config.DefaultLogFile, lc.File.Filename)
	assert.Equal(t, 10, lc.File.MaxSize)
	assert.Equal(t, 5, lc.File.MaxBackups)
}

func TestDaemonLogConfigOverrides(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Log.Level = "info"
	cfg.Log.File = "/tmp/enricher-test.log"

	lc := daemonLogConfig(cfg)

	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, "/tmp/enricher-test.log", lc.File.Filename)
	// Pattern and timestamp layout stay fixed so the viewers can parse
	// the file back.
	assert.Equal(t, "%time - %name - %level - %msg%n", lc.Pattern)
	assert.Equal(t, "2006-01-02 15:04:05", lc.Time)
}
