package ghclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Release is a subset of the GitHub Releases API response used by the
// version fetcher (§4.6).
type Release struct {
	TagName     string `json:"tag_name"`
	Prerelease  bool   `json:"prerelease"`
	Draft       bool   `json:"draft"`
	PublishedAt string `json:"published_at"`
}

// GetLatestRelease fetches the latest release tag from a GitHub repository
// and strips tagPrefix (e.g. "bun-v" from "bun-v1.2.3").
func GetLatestRelease(ctx context.Context, client *http.Client, owner, repo, tagPrefix string) (string, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return "", err
	}

	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", owner, repo)
	var release Release
	if err := getJSON(ctx, client, url, &release); err != nil {
		return "", err
	}
	if release.TagName == "" {
		return "", fmt.Errorf("ghclient: empty tag_name in latest release for %s/%s", owner, repo)
	}
	return strings.TrimPrefix(release.TagName, tagPrefix), nil
}

// ListReleases enumerates every release page for owner/repo (up to
// maxPages, 100 per page — GitHub's per_page maximum), including
// prereleases and drafts; callers filter per fetcher configuration.
func ListReleases(ctx context.Context, client *http.Client, owner, repo string, maxPages int) ([]Release, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = 10
	}

	var all []Release
	for page := 1; page <= maxPages; page++ {
		url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases?per_page=100&page=%d", owner, repo, page)
		var pageReleases []Release
		if err := getJSON(ctx, client, url, &pageReleases); err != nil {
			return nil, err
		}
		if len(pageReleases) == 0 {
			break
		}
		all = append(all, pageReleases...)
		if len(pageReleases) < 100 {
			break
		}
	}
	return all, nil
}

func validateOwnerRepo(owner, repo string) error {
	if strings.Contains(owner, "/") || strings.Contains(repo, "/") {
		return fmt.Errorf("ghclient: invalid owner %q or repo %q: must not contain '/'", owner, repo)
	}
	if owner == "" || repo == "" {
		return fmt.Errorf("ghclient: owner and repo must not be empty")
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ghclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ghclient: request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ghclient: GitHub API returned status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ghclient: decode response from %s: %w", url, err)
	}
	return nil
}
