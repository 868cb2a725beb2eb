package main

import (
	"os"

	"github.com/rustyeddy/riskos/cmd/riskos/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
