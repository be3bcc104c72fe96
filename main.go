package main

import (
	"fmt"
	"os"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/cli"
)

// version, commit, and date are set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperr.ExitCode(err))
	}
}
