// Package registrysync syncs a git-hosted manifest registry — a repository
// of provider manifest TOML files, such as a community-maintained
// counterpart to the embedded builtins — into the user override directory
// §4.4 reads manifests from. Grounded on the teacher's internal/git/git.go
// (go-git clone/pull) plus internal/registry/aqua/sync.go's clone-or-pull
// policy, adapted here for a plain tree of manifest files rather than an
// API-driven registry checkout.
package registrysync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Source identifies a manifest registry hosted on a git forge.
type Source struct {
	// Owner/Name e.g. "vx-tools", "registry".
	Owner string
	Name  string
	// Host defaults to "github.com".
	Host string
	// Branch to track; empty means the remote's default branch.
	Branch string
}

// URL returns the HTTPS clone URL for the registry.
func (s Source) URL() string {
	host := s.Host
	if host == "" {
		host = "github.com"
	}
	return fmt.Sprintf("https://%s/%s/%s.git", host, s.Owner, s.Name)
}

// ManifestsDir returns the path within a checked-out registry that contains
// provider manifest TOML files, mirroring the embedded builtins' own
// "manifests/" layout.
func ManifestsDir(checkoutDir string) string {
	return filepath.Join(checkoutDir, "manifests")
}

// Sync clones source into destDir if absent, or pulls it if already
// present, returning the directory manifest.LoadDir should be pointed at
// (ManifestsDir(destDir)).
func Sync(ctx context.Context, source Source, destDir string) (string, error) {
	if exists(destDir) {
		if err := pull(ctx, destDir); err != nil {
			return "", err
		}
		return ManifestsDir(destDir), nil
	}

	if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
		return "", fmt.Errorf("registrysync: create parent dir: %w", err)
	}

	opts := &git.CloneOptions{URL: source.URL(), Depth: 1, SingleBranch: true}
	if source.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(source.Branch)
	}

	slog.Debug("registrysync: cloning", "url", source.URL(), "dest", destDir)
	if _, err := git.PlainCloneContext(ctx, destDir, false, opts); err != nil {
		return "", fmt.Errorf("registrysync: clone %s: %w", source.URL(), err)
	}
	return ManifestsDir(destDir), nil
}

func pull(ctx context.Context, dir string) error {
	slog.Debug("registrysync: pulling", "dir", dir)
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("registrysync: open %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("registrysync: worktree %s: %w", dir, err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{SingleBranch: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("registrysync: pull %s: %w", dir, err)
	}
	return nil
}

func exists(dir string) bool {
	_, err := git.PlainOpen(dir)
	return err == nil
}
