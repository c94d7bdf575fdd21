// Package main is the entry point for the reconciler CLI.
package main

import (
	"os"

	"github.com/eshaffer321/receipt-reconciler/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
