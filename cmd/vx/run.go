package main

import (
	"context"
	"fmt"
	"os"

	"github.com/terassyi/vx/internal/resolve"
)

// runRuntime implements `<program> <runtime> [args…]` (§6): resolve,
// ensure, prepare, execute, and exit with the child's exit code.
func runRuntime(runtimeName string, args []string) int {
	a, err := newApp(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vx: %v\n", err)
		return 2
	}

	req, err := resolve.ParseVersionRequest("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "vx: %v\n", err)
		return 2
	}

	spec := resolve.ToolSpec{Name: runtimeName, Request: req, Explicit: false}

	code, _, err := a.controller().Run(context.Background(), spec, args)
	a.Progress.Wait()
	if err != nil {
		printPipelineError(err)
		return code
	}
	return code
}
