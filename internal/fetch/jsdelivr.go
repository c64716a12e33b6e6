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

// JSDelivr fetches a GitHub repository's tag list via the jsDelivr CDN
// (§4.6), a fallback data source that isn't subject to GitHub's API rate
// limit.
type JSDelivr struct {
	Owner     string
	Repo      string
	TagPrefix string

	// BaseURL overrides the jsDelivr endpoint, for tests.
	BaseURL string
}

type jsdelivrPackageResponse struct {
	Versions []string `json:"versions"`
}

// FetchVersions implements Fetcher.
func (j *JSDelivr) FetchVersions(ctx context.Context, rc *rtctx.RuntimeContext) ([]rtctx.VersionInfo, error) {
	base := j.BaseURL
	if base == "" {
		base = "https://data.jsdelivr.com/v1/package/gh"
	}
	url := fmt.Sprintf("%s/%s/%s", base, j.Owner, j.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: jsdelivr request: %w", err)
	}

	resp, err := rc.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: jsdelivr %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: jsdelivr returned status %d for %s", resp.StatusCode, url)
	}

	var body jsdelivrPackageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("fetch: jsdelivr decode: %w", err)
	}

	var out []rtctx.VersionInfo
	for _, raw := range body.Versions {
		trimmed := strings.TrimPrefix(raw, j.TagPrefix)
		v, err := version.Parse(trimmed)
		if err != nil {
			continue
		}
		out = append(out, rtctx.VersionInfo{Version: v, Prerelease: v.IsPrerelease()})
	}

	sort.Slice(out, func(i, k int) bool {
		return version.Less(out[k].Version, out[i].Version)
	})
	return out, nil
}
