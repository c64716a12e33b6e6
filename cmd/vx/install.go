package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terassyi/vx/internal/resolve"
	"github.com/terassyi/vx/internal/ui"
)

var installCmd = &cobra.Command{
	Use:   "install <runtime>[@<version>]",
	Short: "Force an ensure of a runtime, without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	runtimeName, ver := splitRuntimeVersion(args[0])

	a, err := newApp(rootNoColor)
	if err != nil {
		return err
	}

	req, err := resolve.ParseVersionRequest(ver)
	if err != nil {
		return err
	}

	spec := resolve.ToolSpec{Name: runtimeName, Request: req, Explicit: ver != ""}

	plan, err := a.resolver().Resolve(context.Background(), spec)
	if err != nil {
		printPipelineError(err)
		return err
	}

	if err := a.ensureStage().Ensure(context.Background(), plan); err != nil {
		a.Progress.Wait()
		printPipelineError(err)
		return err
	}
	a.Progress.Wait()

	if err := publishShims(a, plan); err != nil {
		return err
	}

	style := ui.NewStyle()
	for _, entry := range plan.Entries {
		if entry.ManagedBy != "" {
			continue
		}
		cmd.Printf("%s %s %s\n", style.SuccessMark, entry.Runtime, entry.Version.String())
	}
	return nil
}

// splitRuntimeVersion splits "node@20.11.0" into ("node", "20.11.0"), or
// ("node", "") when there is no "@version" suffix.
func splitRuntimeVersion(spec string) (runtime, version string) {
	if idx := strings.IndexByte(spec, '@'); idx >= 0 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, ""
}
