package main

import (
	"fmt"
	"os"
)

// Version information set via ldflags during build
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command line and returns the process exit status.
func run(args []string) int {
	root, c := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "slowtty: %v\n", err)
		return 1
	}
	return c.code
}
