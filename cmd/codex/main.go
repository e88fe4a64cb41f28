package main

import (
	"os"

	"github.com/GaaneshT/codex/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
