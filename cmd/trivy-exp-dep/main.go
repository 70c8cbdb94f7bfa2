package main

import (
	"os"

	"github.com/example/trivy-exp-dep/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ReportError(os.Stderr, err))
	}
}
