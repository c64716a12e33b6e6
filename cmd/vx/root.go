package main

import "github.com/spf13/cobra"

// vxVersion is set at build time via -ldflags, mirroring the teacher's own
// cmd/toto version variable.
var vxVersion = "dev"

var rootNoColor bool

var rootCmd = &cobra.Command{
	Use:   "vx",
	Short: "Polyglot developer-tool version manager",
	Long: `vx discovers the required version of a command-line tool for the
current project, ensures a matching installation exists in a content-
addressed store, prepares an execution environment, and proxies process
invocation to the chosen executable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootNoColor, "no-color", false, "Disable color output")
	rootCmd.AddCommand(
		versionCmd,
		installCmd,
		listCmd,
		envCmd,
		doctorCmd,
		registryCmd,
	)
}

// knownSubcommands names every cobra-dispatched subcommand so main() can
// tell a lifecycle command apart from a runtime invocation (`vx node
// --version` must never have its "--version" parsed as a vx flag).
var knownSubcommands = map[string]bool{
	"version":  true,
	"install":  true,
	"list":     true,
	"env":      true,
	"doctor":   true,
	"registry": true,
	"help":     true,
	"-h":       true,
	"--help":   true,
}
