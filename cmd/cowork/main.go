package main

import (
	"os"

	"github.com/existflow/cowork/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
