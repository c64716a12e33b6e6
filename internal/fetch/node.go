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

// NodeIndex fetches the Node.js distribution index (§4.6's "Node.js
// index.json" example), classifying LTS releases by their non-empty "lts"
// field.
type NodeIndex struct {
	IndexURL string // defaults to https://nodejs.org/dist/index.json
}

type nodeIndexEntry struct {
	Version string      `json:"version"`
	Date    string      `json:"date"`
	LTS     interface{} `json:"lts"`
}

// FetchVersions implements Fetcher.
func (n *NodeIndex) FetchVersions(ctx context.Context, rc *rtctx.RuntimeContext) ([]rtctx.VersionInfo, error) {
	url := n.IndexURL
	if url == "" {
		url = "https://nodejs.org/dist/index.json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: node index request: %w", err)
	}

	resp, err := rc.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: node index %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: node index returned status %d", resp.StatusCode)
	}

	var entries []nodeIndexEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("fetch: node index decode: %w", err)
	}

	var out []rtctx.VersionInfo
	for _, e := range entries {
		raw := strings.TrimPrefix(e.Version, "v")
		v, err := version.Parse(raw)
		if err != nil {
			continue
		}
		lts := false
		if s, ok := e.LTS.(string); ok && s != "" {
			lts = true
		}
		out = append(out, rtctx.VersionInfo{
			Version:     v,
			Prerelease:  v.IsPrerelease(),
			LTS:         lts,
			ReleaseDate: e.Date,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return version.Less(out[j].Version, out[i].Version)
	})
	return out, nil
}
