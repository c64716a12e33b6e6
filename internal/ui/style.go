// Package ui renders CLI output: colored status marks for pipeline results
// and a terminal progress bar for in-flight downloads. Grounded on the
// teacher's internal/ui/style.go and progress.go, trimmed from its
// apply/reconciliation event vocabulary (EventStart/EventProgress/...) down
// to this pipeline's single download-progress callback shape.
package ui

import (
	"github.com/fatih/color"
)

// Style holds common output styling for CLI commands.
type Style struct {
	SuccessMark string
	FailMark    string
	WarnMark    string
	Header      *color.Color
	Path        *color.Color
	Success     *color.Color
	Fail        *color.Color
}

// NewStyle creates a new Style with standard colors.
func NewStyle() *Style {
	return &Style{
		SuccessMark: color.New(color.FgGreen).Sprint("✓"),
		FailMark:    color.New(color.FgRed).Sprint("✗"),
		WarnMark:    color.New(color.FgYellow).Sprint("⚠"),
		Header:      color.New(color.FgCyan, color.Bold),
		Path:        color.New(color.FgCyan),
		Success:     color.New(color.FgGreen, color.Bold),
		Fail:        color.New(color.FgRed, color.Bold),
	}
}
