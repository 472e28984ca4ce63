package main

import (
	"os"

	"github.com/slurmdash/slurmdash/cmd/slurmdashctl/cmd"
	"github.com/slurmdash/slurmdash/internal/common"
)

func main() {
	common.ConfigureCommandLineLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
