// Package main is the entry point for the bricksync binary.
package main

import (
	"os"

	"bricksync/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
