package main

import (
	"os"

	"github.com/jurisdesk/backupd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
