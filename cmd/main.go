package main

import (
	"os"

	"github.com/rtm-python/est/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
