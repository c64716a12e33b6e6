package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/version"
)

// GoDev fetches the Go toolchain release index from go.dev/dl (§4.6's
// "go.dev/dl" example).
type GoDev struct {
	IndexURL string // defaults to https://go.dev/dl/?mode=json&include=all
}

type goDevRelease struct {
	Version string `json:"version"`
	Stable  bool   `json:"stable"`
}

// FetchVersions implements Fetcher.
func (g *GoDev) FetchVersions(ctx context.Context, rc *rtctx.RuntimeContext) ([]rtctx.VersionInfo, error) {
	url := g.IndexURL
	if url == "" {
		url = "https://go.dev/dl/?mode=json&include=all"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: go.dev request: %w", err)
	}

	resp, err := rc.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: go.dev %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: go.dev returned status %d", resp.StatusCode)
	}

	var releases []goDevRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("fetch: go.dev decode: %w", err)
	}

	var out []rtctx.VersionInfo
	for _, r := range releases {
		raw := strings.TrimPrefix(r.Version, "go")
		// Unstable releases are tagged like "go1.24rc1"; split the suffix
		// off as a prerelease tag ("1.24-rc1") so Parse accepts them.
		if i := strings.IndexAny(raw, "abcdefghijklmnopqrstuvwxyz"); i > 0 {
			raw = raw[:i] + "-" + raw[i:]
		}
		v, err := version.Parse(raw)
		if err != nil {
			continue
		}
		out = append(out, rtctx.VersionInfo{
			Version:    v,
			Prerelease: !r.Stable || v.IsPrerelease(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return version.Less(out[j].Version, out[i].Version)
	})
	return out, nil
}
