package main

import "github.com/thinktide/tasks/internal/cli"

// main is the entry point of the application.
//
// It delegates execution to the [cli.Execute] function which initializes and runs the CLI commands.
// Any errors encountered during command execution result in the application exiting with a non-zero code.
func main() {
	cli.Execute()
}
