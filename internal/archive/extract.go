package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Extractor extracts an archive to a destination directory.
type Extractor interface {
	Extract(path, destDir string) error
}

// NewExtractor returns the Extractor for t.
func NewExtractor(t Type) (Extractor, error) {
	switch t {
	case TypeTarGz:
		return tarGzExtractor{}, nil
	case TypeTarXz:
		return tarXzExtractor{}, nil
	case TypeTarZst:
		return tarZstExtractor{}, nil
	case TypeZip:
		return zipExtractor{}, nil
	case TypeSevenZ:
		return sevenZExtractor{}, nil
	case TypeRaw:
		return rawExtractor{}, nil
	default:
		return nil, fmt.Errorf("archive: unsupported type %q", t)
	}
}

type tarGzExtractor struct{}

func (tarGzExtractor) Extract(path, destDir string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: gzip reader: %w", err)
	}
	defer gr.Close()

	slog.Debug("extracting tar.gz", "path", path, "dest", destDir)
	return extractTar(gr, destDir)
}

type tarXzExtractor struct{}

func (tarXzExtractor) Extract(path, destDir string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: xz reader: %w", err)
	}

	slog.Debug("extracting tar.xz", "path", path, "dest", destDir)
	return extractTar(xr, destDir)
}

type tarZstExtractor struct{}

func (tarZstExtractor) Extract(path, destDir string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: zstd reader: %w", err)
	}
	defer zr.Close()

	slog.Debug("extracting tar.zst", "path", path, "dest", destDir)
	return extractTar(zr.IOReadCloser(), destDir)
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: read tar header: %w", err)
		}

		target := filepath.Join(destDir, hdr.Name)
		if !isInsideDir(destDir, target) {
			return fmt.Errorf("archive: entry escapes destination: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := extractFile(tr, target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if runtime.GOOS == "windows" {
				continue // symlinks inside archives are ignored on Windows (§4.2).
			}
			linkTarget := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if !isInsideDir(destDir, linkTarget) {
				return fmt.Errorf("archive: symlink escapes destination: %s -> %s", hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("archive: mkdir for symlink %s: %w", target, err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("archive: symlink %s: %w", target, err)
			}
		}
	}
}

type zipExtractor struct{}

func (zipExtractor) Extract(path, destDir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("archive: open zip %s: %w", path, err)
	}
	defer zr.Close()

	slog.Debug("extracting zip", "path", path, "dest", destDir)
	for _, f := range zr.File {
		if isOSMetadataPath(f.Name) {
			continue
		}
		target := filepath.Join(destDir, f.Name)
		if !isInsideDir(destDir, target) {
			return fmt.Errorf("archive: entry escapes destination: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", target, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("archive: open zip entry %s: %w", f.Name, err)
		}
		err = extractFile(rc, target, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type sevenZExtractor struct{}

func (sevenZExtractor) Extract(path, destDir string) error {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("archive: open 7z %s: %w", path, err)
	}
	defer r.Close()

	slog.Debug("extracting 7z", "path", path, "dest", destDir)
	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !isInsideDir(destDir, target) {
			return fmt.Errorf("archive: entry escapes destination: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", target, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("archive: open 7z entry %s: %w", f.Name, err)
		}
		err = extractFile(rc, target, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type rawExtractor struct{}

// Extract copies a raw binary download into destDir, named after destDir's
// own base name, with executable permissions.
func (rawExtractor) Extract(path, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("archive: mkdir %s: %w", destDir, err)
	}
	binName := filepath.Base(destDir)
	target := filepath.Join(destDir, binName)

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open raw binary %s: %w", path, err)
	}
	defer in.Close()

	return extractFile(in, target, 0o755)
}

func extractFile(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("archive: mkdir %s: %w", filepath.Dir(target), err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", target, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("archive: write %s: %w", target, err)
	}
	return nil
}

// isOSMetadataPath skips macOS ZIP metadata entries.
func isOSMetadataPath(name string) bool {
	return name == "__MACOSX" || name == "__MACOSX/" || strings.HasPrefix(name, "__MACOSX/")
}

// isInsideDir reports whether target stays within baseDir after resolving
// "..": the sole guard against archive path traversal (§4.2, §8).
func isInsideDir(baseDir, target string) bool {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
