package main

import (
	"os"

	"github.com/retinoscan/retinoscan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
