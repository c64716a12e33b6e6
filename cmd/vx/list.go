package main

import (
	"github.com/spf13/cobra"

	"github.com/terassyi/vx/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list [runtime]",
	Short: "List installed versions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(rootNoColor)
	if err != nil {
		return err
	}
	style := ui.NewStyle()

	if len(args) == 1 {
		return printVersions(cmd, a, style, args[0])
	}

	for _, name := range a.Registry.Names() {
		if err := printVersions(cmd, a, style, name); err != nil {
			return err
		}
	}
	return nil
}

func printVersions(cmd *cobra.Command, a *app, style *ui.Style, runtimeName string) error {
	canonical, ok := a.Index.Resolve(runtimeName)
	if !ok {
		cmd.Printf("%s %s: unknown runtime\n", style.FailMark, runtimeName)
		return nil
	}

	versions, err := a.Store.ListToolVersions(canonical)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return nil
	}

	current, hasCurrent := a.Store.CurrentVersion(canonical)
	cmd.Println(canonical)
	for _, v := range versions {
		mark := " "
		if hasCurrent && v == current {
			mark = style.SuccessMark
		}
		cmd.Printf("  %s %s\n", mark, v)
	}
	return nil
}
