package vxenv

import (
	"fmt"
	"strings"
)

const (
	shellHome   = "$HOME"
	shellPath   = "$PATH"
	fishAddPath = "fish_add_path"
)

// ShellType names a shell syntax family for export statements.
type ShellType string

const (
	ShellPosix ShellType = "posix"
	ShellFish  ShellType = "fish"
)

// ParseShellType parses a --shell flag value into a ShellType.
func ParseShellType(s string) (ShellType, error) {
	switch s {
	case "posix", "bash", "sh", "zsh", "":
		return ShellPosix, nil
	case "fish":
		return ShellFish, nil
	default:
		return "", fmt.Errorf("vxenv: unsupported shell type %q (supported: posix, fish)", s)
	}
}

// Formatter renders environment variable and PATH export statements in one
// shell's syntax.
type Formatter interface {
	ExportVar(key, value string) string
	ExportPath(dirs []string) string
	Ext() string
}

// NewFormatter returns the Formatter for st.
func NewFormatter(st ShellType) Formatter {
	switch st {
	case ShellFish:
		return fishFormatter{}
	default:
		return posixFormatter{}
	}
}

var (
	_ Formatter = (*posixFormatter)(nil)
	_ Formatter = (*fishFormatter)(nil)
)

type posixFormatter struct{}

func (posixFormatter) ExportVar(key, value string) string {
	return fmt.Sprintf("export %s=%q", key, value)
}

func (posixFormatter) ExportPath(dirs []string) string {
	return fmt.Sprintf("export PATH=%q", strings.Join(dirs, ":")+":"+shellPath)
}

func (posixFormatter) Ext() string { return ".sh" }

type fishFormatter struct{}

func (fishFormatter) ExportVar(key, value string) string {
	return fmt.Sprintf("set -gx %s %q", key, value)
}

func (fishFormatter) ExportPath(dirs []string) string {
	quoted := make([]string, len(dirs))
	for i, d := range dirs {
		quoted[i] = fmt.Sprintf("%q", d)
	}
	return fmt.Sprintf("%s %s", fishAddPath, strings.Join(quoted, " "))
}

func (fishFormatter) Ext() string { return ".fish" }
