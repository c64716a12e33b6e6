package installer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/version"
)

// TargetTriple returns the Rust-style target triple conventionally used in
// archive strip-prefix templates (e.g. "x86_64-unknown-linux-gnu").
func TargetTriple(p version.Platform) string {
	var osName string
	switch p.OS {
	case version.OSLinux:
		osName = "unknown-linux-gnu"
	case version.OSMacOS:
		osName = "apple-darwin"
	case version.OSWindows:
		osName = "pc-windows-msvc"
	default:
		osName = "unknown"
	}

	var arch string
	switch p.Arch {
	case version.ArchX86_64:
		arch = "x86_64"
	case version.ArchARM64:
		arch = "aarch64"
	case version.ArchX86:
		arch = "i686"
	default:
		arch = "unknown"
	}
	return arch + "-" + osName
}

// expandTemplate substitutes {version} and {target_triple} in s.
func expandTemplate(s string, ver version.Version, platform version.Platform) string {
	s = strings.ReplaceAll(s, "{version}", ver.String())
	s = strings.ReplaceAll(s, "{target_triple}", TargetTriple(platform))
	return s
}

// ApplyArchiveLayout moves the extracted tree from extractedDir into
// installDir, stripping layout.StripPrefix (after template expansion) from
// every member path (§4.7 step 4, Archive case).
func ApplyArchiveLayout(layout *manifest.ArchiveLayout, extractedDir, installDir string, ver version.Version, platform version.Platform) error {
	if layout == nil || layout.StripPrefix == "" {
		return moveTree(extractedDir, installDir)
	}

	stripped := expandTemplate(layout.StripPrefix, ver, platform)
	sourceDir := filepath.Join(extractedDir, stripped)
	if _, err := os.Stat(sourceDir); err != nil {
		return fmt.Errorf("installer: strip_prefix %q not found under extracted archive: %w", stripped, err)
	}
	return moveTree(sourceDir, installDir)
}

// ApplyBinaryLayout copies a single downloaded binary file into
// "<installDir>/bin/<target_name>" with layout.Mode (§4.7 step 4, Binary
// case).
func ApplyBinaryLayout(layout *manifest.BinaryLayout, downloadedFile, installDir string, ver version.Version, platform version.Platform) error {
	targetName := platform.ExeName(layout.TargetName)
	if layout.TargetName != "" {
		targetName = platform.ExeName(expandTemplate(layout.TargetName, ver, platform))
	}

	binDir := filepath.Join(installDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("installer: create bin dir: %w", err)
	}

	mode := os.FileMode(0o755)
	if layout.Mode != 0 {
		mode = os.FileMode(layout.Mode)
	}

	in, err := os.Open(downloadedFile)
	if err != nil {
		return fmt.Errorf("installer: open downloaded binary: %w", err)
	}
	defer in.Close()

	target := filepath.Join(binDir, targetName)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("installer: create target binary: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("installer: write target binary: %w", err)
	}
	return nil
}

func moveTree(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("installer: create install parent dir: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// os.Rename can fail across filesystem boundaries; fall back to a
	// recursive copy in that case.
	return copyTree(src, dst)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
