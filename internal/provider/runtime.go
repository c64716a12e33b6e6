// Package provider implements the Runtime capability contract and the
// registry that maps runtime names/aliases to concrete instances (C5).
package provider

import (
	"context"

	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/version"
)

// VersionInfo is one entry yielded by a Runtime's FetchVersions (§3).
type VersionInfo = rtctx.VersionInfo

// InstallResult is the outcome of a successful Runtime.Install (§4.5).
type InstallResult struct {
	Path    string
	Version version.Version
}

// VerifyResult is the outcome of Runtime.VerifyInstallation.
type VerifyResult struct {
	Success bool
	Path    string
	Errors  []string
	Hints   []string
}

// ExecutionPrep is what Runtime.PrepareExecution contributes toward the
// stage's PreparedExecution (§4.11): an optional path override for the
// primary runtime, PATH and env contributions for every runtime in the plan,
// and readiness signalling for bundled/system-only runtimes.
type ExecutionPrep struct {
	ExecutableOverride string
	PathPrefix         []string
	EnvOverlay         map[string]string
	ProxyReady         bool
	Message            string
}

// RuntimeContext is the ambient handle passed into Runtime methods that need
// I/O: an HTTP client, the on-disk store, and the resolved platform.
type RuntimeContext = rtctx.RuntimeContext

// Runtime is the polymorphic capability set every provider-backed runtime
// implements (§4.5).
type Runtime interface {
	Name() string
	Description() string
	Ecosystem() string
	Aliases() []string
	Metadata() manifest.RuntimeMetadata

	ExecutableRelativePath(ver version.Version, platform version.Platform) string
	SupportedPlatforms() (version.Constraint, bool)

	FetchVersions(ctx context.Context, rc *RuntimeContext) ([]VersionInfo, error)
	DownloadURL(ver version.Version, platform version.Platform) (string, bool)

	Install(ctx context.Context, ver version.Version, rc *RuntimeContext) (InstallResult, error)
	VerifyInstallation(ver version.Version, path string, platform version.Platform) VerifyResult

	PrepareExecution(ctx context.Context, ver version.Version, rc *RuntimeContext) (ExecutionPrep, error)
}

// PostExtractHook is implemented by runtimes needing a post-extraction
// adjustment (e.g. renaming a versioned executable to a canonical name).
type PostExtractHook interface {
	PostExtract(ver version.Version, path string) error
}

// BundledRuntime is implemented by runtimes carried by a parent runtime's
// install (e.g. an MSBuild shim bundled with a .NET SDK install).
type BundledRuntime interface {
	ParentRuntime() string
	CommandPrefix() []string
}
