// Command vx is the front-end entry point: it dispatches known lifecycle
// subcommands (install, list, env, doctor, registry, version) through
// cobra, and everything else straight into the pipeline as a runtime
// invocation (`vx node --version`), since a runtime's own flags must never
// be parsed as vx's (§6: "<program> <runtime> [args…]").
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: vx <runtime> [args...]")
		return 1
	}

	if knownSubcommands[args[0]] {
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	runtimeName := args[0]
	var runtimeArgs []string
	for _, a := range args[1:] {
		if a == "--no-color" {
			disableColor()
			continue
		}
		runtimeArgs = append(runtimeArgs, a)
	}

	return runRuntime(runtimeName, runtimeArgs)
}
