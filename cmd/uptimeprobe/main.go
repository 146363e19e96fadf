package main

import (
	"os"

	"github.com/amartya2002/uptime-probe/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
