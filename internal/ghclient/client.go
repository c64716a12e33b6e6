// Package ghclient provides a GitHub-aware HTTP client with token
// authentication and a thin releases API, used by the GitHub Releases
// fetcher (C6).
//
// It reads GITHUB_TOKEN or GH_TOKEN from environment variables and creates
// an http.Client that automatically adds Authorization headers to requests
// for GitHub hosts. This increases the GitHub API rate limit from 60 to
// 5,000 requests per hour and enables access to private repositories.
package ghclient

import (
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	envGitHubToken = "GITHUB_TOKEN"
	envGHToken     = "GH_TOKEN"

	hostGitHub              = "github.com"
	hostGitHubAPI           = "api.github.com"
	suffixGitHub            = ".github.com"
	suffixGitHubusercontent = ".githubusercontent.com"
)

// TokenFromEnv reads GITHUB_TOKEN or GH_TOKEN from the environment.
// GITHUB_TOKEN takes precedence. Returns "" if neither is set.
func TokenFromEnv() string {
	if t := os.Getenv(envGitHubToken); t != "" {
		return t
	}
	return os.Getenv(envGHToken)
}

// NewHTTPClient creates an http.Client that adds an Authorization header to
// requests targeting GitHub hosts. If token is empty, requests go out
// unauthenticated (subject to the lower anonymous rate limit).
func NewHTTPClient(token string) *http.Client {
	return &http.Client{
		Timeout: defaultTimeout,
		Transport: &tokenTransport{
			token: token,
			base:  http.DefaultTransport,
		},
	}
}

type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" && isGitHubHost(req.URL.Host) {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}

func isGitHubHost(host string) bool {
	host = strings.ToLower(host)
	if host == hostGitHub || host == hostGitHubAPI {
		return true
	}
	if strings.HasSuffix(host, suffixGitHub) {
		return true
	}
	return strings.HasSuffix(host, suffixGitHubusercontent)
}
