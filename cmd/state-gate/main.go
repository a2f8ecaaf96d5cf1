package main

import (
	"fmt"
	"os"

	"github.com/CAPHTECH/state-gate-sub000/pkg/cli"
	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
)

// Build-time variables set by the release pipeline.
var version = "dev"

func main() {
	cli.SetVersion(version)

	rootCmd := cli.NewRootCommand()
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
}
