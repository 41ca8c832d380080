// Package main is the entry point for the xtreamer command.
package main

import (
	"os"

	"github.com/jmylchreest/xtreamer/cmd/xtreamer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
