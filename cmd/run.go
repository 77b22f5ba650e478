// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ipfix-enricher/internal/config"
	"ipfix-enricher/internal/log"
	"ipfix-enricher/internal/metrics"
	"ipfix-enricher/internal/relay"
	"ipfix-enricher/internal/sysopt"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the enrichment relay in foreground",
	Long: `Run the enrichment relay process in foreground.

The relay will:
  1. Load configuration (compiled defaults when no config file exists)
  2. Initialize logging and apply best-effort system tuning
  3. Bind the receive socket and connect the forward socket
  4. Start the sender goroutine and process packets
  5. Write a statistics block to the log periodically
  6. Handle signals for graceful shutdown (SIGTERM, SIGINT)

Intended to run under systemd; all diagnostics go to the log file, the
console only sees critical messages.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRelay(); err != nil {
			os.Exit(1)
		}
	},
}

func runRelay() error {
	cfg, err := loadConfig()
	if err != nil {
		exitWithError("failed to load config", err)
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	if err := log.Init(daemonLogConfig(cfg)); err != nil {
		exitWithError("failed to initialize logging", err)
	}
	logger := log.GetLogger()

	sysopt.RaisePriority()
	sysopt.RaiseFileLimit()
	if cfg.Tuning.Enabled {
		sysopt.ApplySysctl()
	}

	frame := strings.Repeat("=", 60)
	logger.Info(frame)
	logger.Infof("IPFIX AS Enricher v%s", rootCmd.Version)
	logger.Infof("AS Target: %d", cfg.Enrich.TargetAS)
	logger.Infof("Prefixes: %s", prefixSummary(cfg))
	logger.Infof("Replacement: AS 0 -> AS %d", cfg.Enrich.TargetAS)
	logger.Info(frame)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, shutting down...", sig)
		cancel()
	}()

	service := relay.New(cfg)

	if cfg.Metrics.Enabled {
		metrics.RegisterService(service)
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(ctx); err != nil {
			logger.Errorf("Metrics server failed to start: %v", err)
		} else {
			defer server.Stop(context.Background())
		}
	}

	return service.Run(ctx)
}

// daemonLogConfig maps the relay configuration onto the logging setup.
// Pattern and timestamp layout are fixed: the viewer subcommands parse
// them back out of the file.
func daemonLogConfig(cfg *config.Config) log.Config {
	lc := log.DefaultConfig()
	if cfg.Log.Level != "" {
		lc.Level = cfg.Log.Level
	}
	if cfg.Log.ConsoleLevel != "" {
		lc.ConsoleLevel = cfg.Log.ConsoleLevel
	}
	lc.File = log.FileAppenderOpt{
		Filename:   cfg.LogFileOrDefault(),
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}
	return lc
}

func prefixSummary(cfg *config.Config) string {
	parts := make([]string, 0, len(cfg.Enrich.IPv4Prefixes)+1)
	for _, p := range cfg.Enrich.IPv4Prefixes {
		parts = append(parts, p.String()+".x")
	}
	if len(cfg.Enrich.IPv6Prefix) > 0 {
		parts = append(parts, fmt.Sprintf("%s::/%d", cfg.Enrich.IPv6Prefix, len(cfg.Enrich.IPv6Prefix)*8))
	}
	return strings.Join(parts, ", ")
}
