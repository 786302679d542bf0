// Package main provides the entry point for the luau-runner CLI.
package main

import (
	"os"

	"yqhp/luau-runner/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
