// Package main is the entry point for the querygate CLI.
// It turns natural-language questions into validated, optimized queries.
package main

import (
	"seedfast/querygate/cmd"
)

// main is the entry point for the querygate CLI.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
