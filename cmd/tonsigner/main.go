package main

import (
	"os"

	"github.com/tonsigner/tonsigner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
