package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terassyi/vx/internal/ui"
	"github.com/terassyi/vx/internal/vxenv"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage named environments",
}

var envShellFlag string

func init() {
	envCreateCmd.Flags().StringArrayVar(&envTools, "tool", nil, "runtime@version pin, may be repeated")
	envShowCmd.Flags().StringVar(&envShellFlag, "shell", "", "shell syntax: posix or fish")
	envCmd.AddCommand(envCreateCmd, envListCmd, envShowCmd, envUseCmd, envDeleteCmd)
}

var envTools []string

var envCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a named environment with pinned tool versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(rootNoColor)
		if err != nil {
			return err
		}
		tools := map[string]string{}
		for _, t := range envTools {
			name, ver := splitRuntimeVersion(t)
			if ver == "" {
				return fmt.Errorf("env create: %q must be runtime@version", t)
			}
			tools[name] = ver
		}
		launcher, err := launcherPath()
		if err != nil {
			return err
		}
		if _, err := vxenv.Create(a.Store, launcher, args[0], tools); err != nil {
			return err
		}
		style := ui.NewStyle()
		cmd.Printf("%s created environment %s\n", style.SuccessMark, args[0])
		return nil
	},
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List named environments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(rootNoColor)
		if err != nil {
			return err
		}
		names, err := vxenv.List(a.Store)
		if err != nil {
			return err
		}
		current, hasCurrent := vxenv.CurrentDefault(a.Store)
		style := ui.NewStyle()
		for _, name := range names {
			mark := " "
			if hasCurrent && name == current {
				mark = style.SuccessMark
			}
			cmd.Printf("%s %s\n", mark, name)
		}
		return nil
	},
}

var envShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print shell export statements for an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(rootNoColor)
		if err != nil {
			return err
		}
		env, err := vxenv.Load(a.Store, args[0])
		if err != nil {
			return err
		}
		shellType, err := vxenv.ParseShellType(envShellFlag)
		if err != nil {
			return err
		}
		lines := vxenv.Show(env, a.Store.EnvBinDir(args[0]), vxenv.NewFormatter(shellType))
		cmd.Println(strings.Join(lines, "\n"))
		return nil
	},
}

var envUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default environment for future shells",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(rootNoColor)
		if err != nil {
			return err
		}
		return vxenv.Use(a.Store, args[0])
	},
}

var envDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a named environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(rootNoColor)
		if err != nil {
			return err
		}
		return vxenv.Delete(a.Store, args[0])
	},
}
