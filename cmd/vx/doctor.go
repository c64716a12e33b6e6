package main

import (
	"github.com/spf13/cobra"

	"github.com/terassyi/vx/internal/doctor"
	"github.com/terassyi/vx/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Scan the store for integrity problems",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := newApp(rootNoColor)
	if err != nil {
		return err
	}

	d := doctor.New(a.Store, a.Registry)
	result, err := d.Check()
	if err != nil {
		return err
	}

	style := ui.NewStyle()
	if !result.HasIssues() {
		cmd.Printf("%s store looks healthy\n", style.SuccessMark)
		return nil
	}

	for _, issue := range result.Issues {
		cmd.Printf("%s %s\n", style.FailMark, issue.Message())
	}
	return nil
}
