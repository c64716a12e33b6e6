// Package rtctx holds the small value types shared between the provider
// registry and the version fetchers, factored out on their own so the two
// packages can depend on each other's interfaces without an import cycle:
// provider.Runtime implementations call fetch.Fetcher, and fetch.Fetcher
// implementations report back in terms of these same types.
package rtctx

import (
	"net/http"

	"github.com/terassyi/vx/internal/store"
	"github.com/terassyi/vx/internal/version"
)

// VersionInfo is one entry yielded by a Runtime's FetchVersions (§3).
type VersionInfo struct {
	Version     version.Version
	Prerelease  bool
	LTS         bool
	ReleaseDate string
	Metadata    map[string]string
}

// RuntimeContext is the ambient handle passed into Runtime methods that need
// I/O: an HTTP client, the on-disk store, and the resolved platform.
type RuntimeContext struct {
	HTTPClient *http.Client
	Store      *store.Store
	Platform   version.Platform

	// OnDownloadProgress, if set, is invoked periodically while a runtime
	// download is in flight. total is 0 when the server didn't report
	// Content-Length. The CLI front end wires this to a terminal progress
	// bar; a nil field means no progress reporting.
	OnDownloadProgress func(runtime, version string, downloaded, total int64)
}
