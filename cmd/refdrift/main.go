// Command refdrift compares the reference datasets produced by two versions
// of tobac's example notebooks.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/refdrift/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
