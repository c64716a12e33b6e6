package installer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/terassyi/vx/internal/archive"
	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/store"
	"github.com/terassyi/vx/internal/version"
	vxerrors "github.com/terassyi/vx/internal/vxerrors"
)

// Request is everything Install needs to fetch and lay out one
// (runtime, version) pair.
type Request struct {
	Runtime      string
	Version      version.Version
	Platform     version.Platform
	DownloadURL  string
	Checksum     string // "algorithm:hash", may be empty
	Filename     string // archive/binary filename, used for format detection
	IsBinaryOnly bool
	Layout       manifest.ArchiveLayout
	BinaryLayout manifest.BinaryLayout
	Progress     ProgressFunc // optional; reports download progress
}

// PostExtractFunc adjusts a freshly-extracted install directory before
// final verification (§4.7 step 6).
type PostExtractFunc func(installDir string) error

// VerifyFunc checks a finished install and reports success/failure
// (§4.7 step 7).
type VerifyFunc func(installDir string) error

// Install runs the full pipeline described in §4.7 for one (runtime,
// version): download, optional checksum verification, format-specific
// extraction into a scratch directory, layout application, post-extract hook
// and final verification on the staged copy, and only then an atomic rename
// into the store. At-most-once
// is guaranteed in-process via a keyed mutex and cross-process via a lock
// file under the scratch directory.
func Install(ctx context.Context, s *store.Store, client *http.Client, req Request, postExtract PostExtractFunc, verify VerifyFunc) (string, error) {
	key := LockKey(req.Runtime, req.Version.String())
	unlock := processLocks.lock(key)
	defer unlock()

	if req.DownloadURL == "" {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(),
			"platform_not_supported: no download URL for this platform")
	}

	tmpDir := s.TmpDir(req.Runtime, req.Version.String())
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("installer: create scratch dir: %w", err)
	}

	fileLock := NewFileLock(tmpDir)
	ok, err := fileLock.TryLock()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(),
			"another process is already installing this version")
	}
	defer os.RemoveAll(tmpDir)
	defer fileLock.Unlock()

	// Clear what an earlier attempt left behind, keeping the lock file.
	leftovers, _ := os.ReadDir(tmpDir)
	for _, e := range leftovers {
		if e.Name() != filepath.Base(fileLock.path) {
			os.RemoveAll(filepath.Join(tmpDir, e.Name()))
		}
	}

	cacheDir := s.CacheDir(req.Runtime)
	downloadPath := filepath.Join(cacheDir, req.Filename)
	if _, err := Download(ctx, client, req.Runtime, req.Version.String(), req.DownloadURL, downloadPath, req.Progress); err != nil {
		return "", err
	}

	if err := VerifyChecksum(downloadPath, req.Checksum); err != nil {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(),
			"checksum verification failed").WithCause(err)
	}

	extractedDir := filepath.Join(tmpDir, "extracted")
	if err := os.MkdirAll(extractedDir, 0o755); err != nil {
		return "", fmt.Errorf("installer: create extraction dir: %w", err)
	}

	if req.IsBinaryOnly {
		stagedInstall := filepath.Join(tmpDir, "staged")
		if err := ApplyBinaryLayout(&req.BinaryLayout, downloadPath, stagedInstall, req.Version, req.Platform); err != nil {
			return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(), "binary layout failed").WithCause(err)
		}
		return finishInstall(s, req, stagedInstall, postExtract, verify)
	}

	head := make([]byte, 16)
	f, err := os.Open(downloadPath)
	if err != nil {
		return "", fmt.Errorf("installer: reopen download: %w", err)
	}
	n, _ := f.Read(head)
	f.Close()

	archiveType, err := archive.Detect(req.Filename, head[:n])
	if err != nil {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(), "unrecognised archive format").WithCause(err)
	}

	extractor, err := archive.NewExtractor(archiveType)
	if err != nil {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(), "no extractor for format").WithCause(err)
	}
	if err := extractor.Extract(downloadPath, extractedDir); err != nil {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(), "extraction failed").WithCause(err)
	}

	stagedInstall := filepath.Join(tmpDir, "staged")
	if err := ApplyArchiveLayout(&req.Layout, extractedDir, stagedInstall, req.Version, req.Platform); err != nil {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(), "archive layout failed").WithCause(err)
	}

	return finishInstall(s, req, stagedInstall, postExtract, verify)
}

func finishInstall(s *store.Store, req Request, stagedInstall string, postExtract PostExtractFunc, verify VerifyFunc) (string, error) {
	if postExtract != nil {
		if err := postExtract(stagedInstall); err != nil {
			return "", vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, req.Runtime, req.Version.String(), "post-extract hook failed").WithCause(err)
		}
	}

	if verify != nil {
		if err := verify(stagedInstall); err != nil {
			os.RemoveAll(stagedInstall)
			return "", vxerrors.NewEnsureError(vxerrors.EnsurePostInstallVerifyFailed, req.Runtime, req.Version.String(), "installed payload failed verification").WithCause(err)
		}
	}

	finalDir := s.ToolVersionDir(req.Runtime, req.Version.String())
	if err := os.RemoveAll(finalDir); err != nil {
		return "", fmt.Errorf("installer: clear existing install dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(finalDir), 0o755); err != nil {
		return "", fmt.Errorf("installer: create tools dir: %w", err)
	}
	if err := os.Rename(stagedInstall, finalDir); err != nil {
		return "", fmt.Errorf("installer: atomic install rename: %w", err)
	}
	return finalDir, nil
}
