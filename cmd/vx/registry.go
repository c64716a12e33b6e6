package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terassyi/vx/internal/registrysync"
	"github.com/terassyi/vx/internal/ui"
)

var registryBranchFlag string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage third-party manifest registries",
}

func init() {
	registrySyncCmd.Flags().StringVar(&registryBranchFlag, "branch", "", "branch to track (default: remote default)")
	registryCmd.AddCommand(registrySyncCmd)
}

var registrySyncCmd = &cobra.Command{
	Use:   "sync <owner>/<repo>",
	Short: "Clone or update a manifest registry and install its manifests",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistrySync,
}

func runRegistrySync(cmd *cobra.Command, args []string) error {
	owner, name, err := splitOwnerRepo(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(rootNoColor)
	if err != nil {
		return err
	}

	source := registrysync.Source{Owner: owner, Name: name, Branch: registryBranchFlag}
	checkoutDir := filepath.Join(a.Store.Root(), "registry", owner+"_"+name)

	manifestsDir, err := registrysync.Sync(context.Background(), source, checkoutDir)
	if err != nil {
		return err
	}

	userManifestDir := filepath.Join(a.Store.Root(), "providers")
	n, err := copyManifests(manifestsDir, userManifestDir)
	if err != nil {
		return err
	}

	style := ui.NewStyle()
	cmd.Printf("%s synced %s: installed %d manifest(s)\n", style.SuccessMark, source.URL(), n)
	return nil
}

// copyManifests flat-copies every *.toml file from src into dst, creating
// dst if necessary, and returns how many files were copied.
func copyManifests(src, dst string) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("registry sync: read %s: %w", src, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, fmt.Errorf("registry sync: create %s: %w", dst, err)
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".toml") {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("registry sync: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("registry sync: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("registry sync: copy %s: %w", dst, err)
	}
	return nil
}

// splitOwnerRepo parses "owner/repo" into its two parts.
func splitOwnerRepo(spec string) (owner, repo string, err error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("registry sync: %q must be of the form owner/repo", spec)
	}
	return parts[0], parts[1], nil
}
