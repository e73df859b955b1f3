// Package main provides the entry point for the codeindex CLI.
package main

import (
	"os"

	"github.com/ViperJuice/codeindex/cmd/codeindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
