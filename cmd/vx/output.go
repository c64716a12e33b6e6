package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/terassyi/vx/internal/ui"
	vxerrors "github.com/terassyi/vx/internal/vxerrors"
)

func disableColor() {
	color.NoColor = true
}

// printPipelineError renders a classified PipelineError to stderr with its
// primary cause line and, where available, a remediation hint (§7: "every
// user-visible failure includes a primary cause line and ... a remediation
// hint").
func printPipelineError(err error) {
	style := ui.NewStyle()
	var pe *vxerrors.PipelineError
	if errors.As(err, &pe) {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.FailMark, pe)
		if hint := pe.HintText(); hint != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", hint)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", style.FailMark, err)
}
