// Package installer implements the install pipeline (C7): download,
// checksum verification, format-specific extraction, layout application,
// post-extract hooks, verification of the staged copy, and finally an
// atomic rename into the store.
package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/terassyi/vx/internal/checksum"
	vxerrors "github.com/terassyi/vx/internal/vxerrors"
)

// ProgressFunc reports bytes downloaded so far against the total (0 if
// unknown). It is invoked from the copy loop, so it must not block.
type ProgressFunc func(downloaded, total int64)

// Download fetches url into destPath via a temp-file-then-rename so a
// concurrent reader never observes a partial file (§4.7 step 2). progress
// may be nil.
func Download(ctx context.Context, client *http.Client, runtime, ver string, url, destPath string, progress ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureDownloadFailed, runtime, ver, "failed to build download request").WithCause(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureDownloadFailed, runtime, ver, "download request failed").WithCause(err).WithURL(url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureDownloadFailed, runtime, ver,
			fmt.Sprintf("HTTP %d", resp.StatusCode)).WithURL(url)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("installer: create download dir: %w", err)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("installer: create temp download file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	var src io.Reader = resp.Body
	if progress != nil {
		total := resp.ContentLength
		if total < 0 {
			total = 0
		}
		src = &progressReader{r: resp.Body, total: total, report: progress}
	}

	if _, err := io.Copy(f, src); err != nil {
		return "", vxerrors.NewEnsureError(vxerrors.EnsureDownloadFailed, runtime, ver, "failed writing downloaded bytes").WithCause(err).WithURL(url)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("installer: close temp download file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("installer: finalize download: %w", err)
	}

	return destPath, nil
}

// progressReader wraps an io.Reader, reporting cumulative bytes read to
// report after every chunk.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.report(p.read, p.total)
	}
	return n, err
}

// VerifyChecksum verifies filePath against a "algorithm:hash" checksum
// string (§4.7 step 3). An empty expected string skips verification.
func VerifyChecksum(filePath, expected string) error {
	if expected == "" {
		return nil
	}
	algorithm, hash, err := checksum.Parse(expected)
	if err != nil {
		return err
	}
	return checksum.Verify(filePath, algorithm, hash)
}
