package main

import (
	"os"

	"github.com/streamhouse/quotasuite/cmd/quotasuite/cmd"
	"github.com/streamhouse/quotasuite/internal/common"
)

func main() {
	common.ConfigureCommandLineLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
