// Package main provides the entry point for the pathindex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/pathindex/cmd/pathindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
