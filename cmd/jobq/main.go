// Command jobq is the command-line front end for the job queue: it runs
// the worker pool and sweepers, submits ad hoc jobs, inspects the dead
// letter queue, reports queue statistics, and reads or edits runtime
// configuration.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := BuildCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
