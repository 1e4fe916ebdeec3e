package main

import (
	"fmt"
	"os"

	app "github.com/valter-silva-au/opswatch/internal"
	"github.com/valter-silva-au/opswatch/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	configDir := os.Getenv("OPSWATCH_CONFIG_DIR")

	if _, err := app.NewApp(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing opswatch: %v\n", err)
		os.Exit(1)
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
