// Package main is the entry point of the Vedfolnir bridge CLI.
package main

import (
	"os"

	"github.com/vedfolnir/wsbridge/cmd"
)

// Version info injected via ldflags at build time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
