// Package main is the entry point for the livegate CLI.
package main

import (
	"os"

	"github.com/jmylchreest/livegate/cmd/livegate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
