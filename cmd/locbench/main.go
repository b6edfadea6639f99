// Package main provides the entry point for the locbench CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/locbench/cmd/locbench/commands"
	"github.com/Sumatoshi-tech/locbench/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
