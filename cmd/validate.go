// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ipfix-enricher/internal/config"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting the relay.

This is useful for pre-checking configuration before restarting the
daemon. Defaults fill any key the file leaves out, exactly as run would
apply them; --print shows the resulting effective configuration.

Examples:
  ipfix-enricher validate -f /etc/ipfix-enricher/config.yml
  ipfix-enricher validate -f config.yml --print`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateCommand()
	},
}

var (
	validateConfigFile string
	validatePrint      bool
)

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate (required)")
	validateCmd.Flags().BoolVar(&validatePrint, "print", false,
		"print the effective configuration as YAML")
	validateCmd.MarkFlagRequired("file")
}

func runValidateCommand() {
	cfg, err := config.Load(validateConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VALID: relay %s -> %s, AS %d, %d IPv4 prefix(es), buffer %d\n",
		cfg.Listen.Addr(),
		cfg.Destination.Addr(),
		cfg.Enrich.TargetAS,
		len(cfg.Enrich.IPv4Prefixes),
		cfg.Buffer.Capacity,
	)

	if validatePrint {
		out, err := yaml.Marshal(map[string]*config.Config{"enricher": cfg})
		if err != nil {
			exitWithError("failed to render config", err)
		}
		fmt.Printf("\n%s", out)
	}
}
