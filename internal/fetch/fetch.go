// Package fetch implements version fetchers (C6): sources of the available
// version list for a runtime, behind a single interface so providers can
// plug tool-specific data sources.
package fetch

import (
	"context"

	"github.com/terassyi/vx/internal/rtctx"
)

// Fetcher produces a finite, ordered sequence of rtctx.VersionInfo for a
// runtime. Implementations take only immutable input and never cache their
// result in process-local statics — callers may memoise per invocation
// (§4.6).
type Fetcher interface {
	FetchVersions(ctx context.Context, rc *rtctx.RuntimeContext) ([]rtctx.VersionInfo, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rc *rtctx.RuntimeContext) ([]rtctx.VersionInfo, error)

// FetchVersions implements Fetcher.
func (f FetcherFunc) FetchVersions(ctx context.Context, rc *rtctx.RuntimeContext) ([]rtctx.VersionInfo, error) {
	return f(ctx, rc)
}
