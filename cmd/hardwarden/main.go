package main

// ============================================================================
// hardwarden entry point
// ============================================================================
//
// Keeps main tiny: panic recovery, command dispatch, and a usable error
// report. All real logic lives under internal/.
// ============================================================================

import (
	"fmt"
	"os"

	"github.com/okvist/hardwarden/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "full error: %+v\n\n", err)
		fmt.Fprintln(os.Stderr, "usage: hardwarden run --config <path>")
		os.Exit(1)
	}
}
