// Package main is the entry point for the IPFIX AS enrichment relay.
package main

import (
	"fmt"
	"os"

	"ipfix-enricher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
