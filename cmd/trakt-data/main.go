// Package main provides the entry point for the trakt-data CLI.
package main

import (
	"github.com/josh/trakt-data/internal/cli"
)

func main() {
	cli.Execute()
}
