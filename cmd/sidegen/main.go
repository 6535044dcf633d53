package main

import (
	"os"

	"github.com/pablasso/sidegen/internal/cli"
)

func main() {
	// Without a subcommand the root command launches the TUI.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
