package main

import (
	"os"

	"github.com/spigell/gh-profiler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
