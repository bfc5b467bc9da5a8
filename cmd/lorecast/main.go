// Package main is the entry point for the lorecast CLI.
//
// Usage:
//
//	lorecast [flags] <command> [args]
//
// Commands:
//
//	analyze    - Run the full book analysis and print the dashboard
//	serve      - Serve the HTTP API and live voice bridge
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/lorecast/lorecast/cmd/lorecast/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
