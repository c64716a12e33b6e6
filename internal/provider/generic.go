package provider

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/terassyi/vx/internal/fetch"
	"github.com/terassyi/vx/internal/installer"
	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/version"
)

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// GenericRuntime is a Runtime implementation driven entirely by a manifest
// RuntimeDef plus an injected Fetcher: it never hardcodes a runtime's name.
// Every builtin provider (node, go, rust, python...) is this type configured
// differently, the same way the teacher's registry builds one Resource kind
// per manifest entry rather than one Go type per tool.
type GenericRuntime struct {
	meta    manifest.RuntimeMetadata
	fetcher fetch.Fetcher
}

// NewGenericRuntime builds a GenericRuntime from resolved manifest metadata
// and the fetcher that knows how to enumerate this runtime's versions.
func NewGenericRuntime(meta manifest.RuntimeMetadata, fetcher fetch.Fetcher) *GenericRuntime {
	return &GenericRuntime{meta: meta, fetcher: fetcher}
}

func (g *GenericRuntime) Name() string        { return g.meta.Def.Name }
func (g *GenericRuntime) Description() string { return g.meta.ProviderName }
func (g *GenericRuntime) Ecosystem() string   { return g.meta.Def.Ecosystem }
func (g *GenericRuntime) Aliases() []string   { return g.meta.Def.Aliases }
func (g *GenericRuntime) Metadata() manifest.RuntimeMetadata { return g.meta }

// ExecutableRelativePath returns the path, relative to the install
// directory, of this runtime's primary executable for ver/platform.
func (g *GenericRuntime) ExecutableRelativePath(ver version.Version, platform version.Platform) string {
	if g.meta.Def.ArchiveLayout != nil && g.meta.Def.ArchiveLayout.ExecRelPath != "" {
		return platform.ExeName(g.meta.Def.ArchiveLayout.ExecRelPath)
	}
	name := g.meta.Def.Executable
	if name == "" {
		name = g.meta.Def.Name
	}
	if g.meta.Def.BinaryLayout != nil {
		target := g.meta.Def.BinaryLayout.TargetName
		if target == "" {
			target = name
		}
		return path.Join("bin", platform.ExeName(target))
	}
	return path.Join("bin", platform.ExeName(name))
}

func (g *GenericRuntime) SupportedPlatforms() (version.Constraint, bool) {
	return g.meta.Platform, !g.meta.Platform.IsEmpty()
}

func (g *GenericRuntime) FetchVersions(ctx context.Context, rc *RuntimeContext) ([]VersionInfo, error) {
	if g.fetcher == nil {
		return nil, fmt.Errorf("provider %s: no version fetcher configured", g.Name())
	}
	return g.fetcher.FetchVersions(ctx, rc)
}

// DownloadURL expands the manifest's URLTemplate for ver/platform. Returns
// false if this runtime has no download source (e.g. a managed-by-parent
// bundled tool) or the platform isn't covered by the source's own rules.
func (g *GenericRuntime) DownloadURL(ver version.Version, platform version.Platform) (string, bool) {
	if g.meta.Def.Source == nil || g.meta.Def.Source.URLTemplate == "" {
		return "", false
	}
	if !g.meta.Platform.Allows(platform) {
		return "", false
	}
	return expandURLTemplate(g.meta.Def.Source.URLTemplate, ver, platform), true
}

func expandURLTemplate(tmpl string, ver version.Version, platform version.Platform) string {
	r := strings.NewReplacer(
		"{version}", ver.String(),
		"{os}", string(platform.OS),
		"{arch}", string(platform.Arch),
		"{target_triple}", installer.TargetTriple(platform),
	)
	return r.Replace(tmpl)
}

// Install delegates to the installer package, translating this runtime's
// manifest layout rules into an installer.Request.
func (g *GenericRuntime) Install(ctx context.Context, ver version.Version, rc *RuntimeContext) (InstallResult, error) {
	url, ok := g.DownloadURL(ver, rc.Platform)
	if !ok {
		return InstallResult{}, fmt.Errorf("provider %s: no download URL for %s on %s", g.Name(), ver.String(), rc.Platform.String())
	}

	req := installer.Request{
		Runtime:     g.Name(),
		Version:     ver,
		Platform:    rc.Platform,
		DownloadURL: url,
		Filename:    filenameFromURL(url),
	}
	if rc.OnDownloadProgress != nil {
		name, verStr := g.Name(), ver.String()
		req.Progress = func(downloaded, total int64) {
			rc.OnDownloadProgress(name, verStr, downloaded, total)
		}
	}
	if g.meta.Def.BinaryLayout != nil {
		req.IsBinaryOnly = true
		req.BinaryLayout = *g.meta.Def.BinaryLayout
	} else if g.meta.Def.ArchiveLayout != nil {
		req.Layout = *g.meta.Def.ArchiveLayout
	}

	var postExtract installer.PostExtractFunc
	if len(g.meta.Def.PostExtract) > 0 {
		postExtract = func(dir string) error {
			// The declared post_extract commands are not executed: this
			// hook does nothing and returns nil, and no other stage runs
			// them either.
			return nil
		}
	}

	installDir, err := installer.Install(ctx, rc.Store, rc.HTTPClient, req, postExtract, nil)
	if err != nil {
		return InstallResult{}, err
	}
	return InstallResult{Path: installDir, Version: ver}, nil
}

func filenameFromURL(url string) string {
	idx := strings.LastIndexByte(url, '/')
	if idx < 0 {
		return url
	}
	return url[idx+1:]
}

// VerifyInstallation checks that the expected executable exists at path and
// is accessible; a generic runtime has no tool-specific health check beyond
// that, mirroring the teacher's default verification for manifest-only
// resources.
func (g *GenericRuntime) VerifyInstallation(ver version.Version, installPath string, platform version.Platform) VerifyResult {
	execRel := g.ExecutableRelativePath(ver, platform)
	full := path.Join(installPath, execRel)
	if !pathExists(full) {
		return VerifyResult{
			Success: false,
			Path:    full,
			Errors:  []string{fmt.Sprintf("expected executable not found at %s", full)},
		}
	}
	return VerifyResult{Success: true, Path: full}
}

// PrepareExecution contributes this runtime's install bin directory to the
// PATH and reports the resolved executable override.
func (g *GenericRuntime) PrepareExecution(ctx context.Context, ver version.Version, rc *RuntimeContext) (ExecutionPrep, error) {
	installDir := rc.Store.ToolVersionDir(g.Name(), ver.String())
	execRel := g.ExecutableRelativePath(ver, rc.Platform)
	full := path.Join(installDir, execRel)

	binDir := path.Dir(full)
	prep := ExecutionPrep{
		ExecutableOverride: full,
		PathPrefix:         []string{binDir},
		ProxyReady:         true,
	}
	if g.meta.Def.Bundled != nil {
		prep.Message = fmt.Sprintf("bundled under %s", g.meta.Def.Bundled.Parent)
	}
	return prep, nil
}

// ParentRuntime and CommandPrefix implement BundledRuntime when the manifest
// declares this runtime as bundled under a parent install.
func (g *GenericRuntime) ParentRuntime() string {
	if g.meta.Def.Bundled == nil {
		return ""
	}
	return g.meta.Def.Bundled.Parent
}

func (g *GenericRuntime) CommandPrefix() []string {
	if g.meta.Def.Bundled == nil {
		return nil
	}
	return g.meta.Def.Bundled.CommandPrefix
}
