// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ipfix-enricher/internal/config"
)

var (
	// Global flags
	configFile string
	logFile    string
)

const defaultConfigFile = "/etc/ipfix-enricher/config.yml"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ipfix-enricher",
	Short: "IPFIX AS enrichment relay for NetFlow/IPFIX exports",
	Long: `ipfix-enricher relays IPFIX/NetFlow datagrams between an exporter and a
collector, rewriting zero AS fields on the way through.

Every received datagram is scanned for the configured IPv4/IPv6 address
prefixes. When a prefix is present, each 4-byte zero AS field in the
payload is replaced with the target AS and the packet is forwarded with
its size unchanged. Non-matching packets pass through untouched.

Statistics are written to the log in a fixed block format; the stats,
tail and monitor subcommands read that log back, so they work against a
daemon started by systemd just as well as one started by hand.`,
	Version: "6.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile,
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log-file", "l", "",
		"log file path (default: "+config.DefaultLogFile+")")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig resolves the -c flag. The default location is optional: when
// it does not exist the compiled defaults apply, so the binary runs with
// no configuration at all. An explicitly named file must load.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == defaultConfigFile && !config.Exists(path) {
		path = ""
	}
	return config.Load(path)
}

// viewerLogFile resolves the log path the viewer subcommands read:
// the -l flag wins, then the configured path, then the default.
func viewerLogFile() string {
	if logFile != "" {
		return logFile
	}
	if cfg, err := loadConfig(); err == nil {
		return cfg.LogFileOrDefault()
	}
	return config.DefaultLogFile
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
