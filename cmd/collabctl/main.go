// Package main is the entry point for the collabctl admin CLI.
package main

import (
	"os"

	"github.com/collabhub/collabhub/cmd/collabctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
