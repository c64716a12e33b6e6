// Package archive implements format detection and extraction for the
// download artifacts the installer stage produces (C2): tar.gz, tar.xz,
// tar.zst, zip, 7z, and raw binaries. Detection tries the file extension
// first, then falls back to magic bytes; member paths are always validated
// to stay inside the destination directory.
package archive

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Type identifies an archive format.
type Type string

const (
	TypeTarGz   Type = "tar.gz"
	TypeTarXz   Type = "tar.xz"
	TypeTarZst  Type = "tar.zst"
	TypeZip     Type = "zip"
	TypeSevenZ  Type = "7z"
	TypeRaw     Type = "raw"
	TypeUnknown Type = ""
)

// magic byte signatures (§4.2).
var (
	gzipMagic   = []byte{0x1f, 0x8b}
	xzMagic     = []byte{0xfd, 0x37, 0x7a, 0x58}
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	zipMagic    = []byte{0x50, 0x4b}
	sevenZMagic = []byte{0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c}
)

// DetectByExtension returns the archive type implied by a filename, or
// TypeUnknown if the extension isn't recognised.
func DetectByExtension(name string) Type {
	lower := strings.ToLower(filepath.Base(name))
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TypeTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return TypeTarXz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return TypeTarZst
	case strings.HasSuffix(lower, ".zip"):
		return TypeZip
	case strings.HasSuffix(lower, ".7z"):
		return TypeSevenZ
	default:
		return TypeUnknown
	}
}

// DetectByMagic returns the archive type implied by the leading bytes of a
// file, or TypeUnknown if none of the known signatures match.
func DetectByMagic(head []byte) Type {
	switch {
	case bytes.HasPrefix(head, sevenZMagic):
		return TypeSevenZ
	case bytes.HasPrefix(head, gzipMagic):
		return TypeTarGz
	case bytes.HasPrefix(head, xzMagic):
		return TypeTarXz
	case bytes.HasPrefix(head, zstdMagic):
		return TypeTarZst
	case bytes.HasPrefix(head, zipMagic):
		return TypeZip
	default:
		return TypeUnknown
	}
}

// ErrUnknownFormat is returned when neither extension nor magic bytes
// identify a supported archive format.
type ErrUnknownFormat struct {
	Path string
}

func (e *ErrUnknownFormat) Error() string {
	return fmt.Sprintf("archive: unknown format for %s", e.Path)
}

// Detect determines the archive type for path, trying the extension first
// and falling back to the magic bytes in head.
func Detect(path string, head []byte) (Type, error) {
	if t := DetectByExtension(path); t != TypeUnknown {
		return t, nil
	}
	if t := DetectByMagic(head); t != TypeUnknown {
		return t, nil
	}
	return TypeUnknown, &ErrUnknownFormat{Path: path}
}
