package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/terassyi/vx/internal/ghclient"
	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/version"
)

// GitHubReleases fetches versions from a GitHub repository's Releases API
// (§4.6), with configurable tag-prefix stripping, a prerelease filter, and
// an LTS-detection pattern. When the Releases API call fails for any reason
// (a rate limit included) it falls back to the jsDelivr CDN tag listing.
type GitHubReleases struct {
	Owner             string
	Repo              string
	TagPrefix         string
	IncludePrerelease bool
	LTSPattern        *regexp.Regexp
	MaxPages          int

	// fallback is used whenever the GitHub API call returns an error; nil
	// disables the fallback.
	fallback *JSDelivr
}

// NewGitHubReleases builds a GitHubReleases fetcher with a jsDelivr
// fallback wired to the same owner/repo.
func NewGitHubReleases(owner, repo, tagPrefix string) *GitHubReleases {
	return &GitHubReleases{
		Owner:     owner,
		Repo:      repo,
		TagPrefix: tagPrefix,
		fallback:  &JSDelivr{Owner: owner, Repo: repo, TagPrefix: tagPrefix},
	}
}

// FetchVersions implements Fetcher.
func (g *GitHubReleases) FetchVersions(ctx context.Context, rc *rtctx.RuntimeContext) ([]rtctx.VersionInfo, error) {
	releases, err := ghclient.ListReleases(ctx, rc.HTTPClient, g.Owner, g.Repo, g.MaxPages)
	if err != nil {
		if g.fallback != nil {
			slog.Warn("github releases fetch failed, falling back to jsDelivr", "owner", g.Owner, "repo", g.Repo, "err", err)
			return g.fallback.FetchVersions(ctx, rc)
		}
		return nil, fmt.Errorf("fetch: github releases %s/%s: %w", g.Owner, g.Repo, err)
	}

	var out []rtctx.VersionInfo
	for _, rel := range releases {
		if rel.Draft {
			continue
		}
		if rel.Prerelease && !g.IncludePrerelease {
			continue
		}
		raw := strings.TrimPrefix(rel.TagName, g.TagPrefix)
		v, err := version.Parse(raw)
		if err != nil {
			continue
		}
		out = append(out, rtctx.VersionInfo{
			Version:     v,
			Prerelease:  rel.Prerelease || v.IsPrerelease(),
			LTS:         g.LTSPattern != nil && g.LTSPattern.MatchString(rel.TagName),
			ReleaseDate: rel.PublishedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return version.Less(out[j].Version, out[i].Version)
	})
	return out, nil
}
