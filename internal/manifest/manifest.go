// Package manifest implements the provider manifest and constraints
// registry (C4): loading TOML provider descriptions from embedded, user, and
// project sources, indexing them by name and alias, merging platform
// constraints, and resolving version-pattern constraint rules into
// dependency lists.
package manifest

import (
	"github.com/terassyi/vx/internal/version"
)

// ProviderMeta describes a provider: a TOML file grouping one or more
// related runtimes (e.g. the "node" provider groups node, npm, npx).
type ProviderMeta struct {
	Name        string `toml:"name"`
	Description string `toml:"description,omitempty"`
}

// DownloadSource configures where a runtime's archives are published.
type DownloadSource struct {
	// URLTemplate supports {version}, {os}, {arch}, {target_triple}.
	URLTemplate string `toml:"url_template"`
	ChecksumURL string `toml:"checksum_url,omitempty"`
}

// ArchiveLayout describes how an extracted archive maps to an installed
// tool directory (§4.7).
type ArchiveLayout struct {
	// StripPrefix may contain {version} and {target_triple} substitutions
	// and is removed from every extracted member path before it is placed
	// under the install directory.
	StripPrefix string `toml:"strip_prefix,omitempty"`
	// ExecRelPath is the path, relative to the install directory, of the
	// primary executable once extraction and stripping are done.
	ExecRelPath string `toml:"exec_rel_path"`
	Mode        uint32 `toml:"mode,omitempty"`
}

// BinaryLayout describes a raw-binary (non-archive) download.
type BinaryLayout struct {
	TargetName string `toml:"target_name"`
	Mode       uint32 `toml:"mode,omitempty"`
}

// DependencyDef names a dependency runtime and the version range it must
// satisfy.
type DependencyDef struct {
	Runtime string `toml:"runtime"`
	Range   string `toml:"range"`
}

// ConstraintRule maps a version pattern on this runtime to dependency
// requirements and recommendations (§4.4).
type ConstraintRule struct {
	When       string          `toml:"when"`
	Requires   []DependencyDef `toml:"requires,omitempty"`
	Recommends []DependencyDef `toml:"recommends,omitempty"`
}

// BundledRuntimeDef declares that this runtime is carried by a parent
// runtime's install (e.g. an MSBuild shim bundled with a .NET SDK) and
// should have a command prefix prepended at execution time.
type BundledRuntimeDef struct {
	Parent        string   `toml:"parent"`
	CommandPrefix []string `toml:"command_prefix,omitempty"`
}

// PlatformConstraintDef is the TOML-facing form of version.Constraint.
type PlatformConstraintDef struct {
	Label       string   `toml:"label,omitempty"`
	Description string   `toml:"description,omitempty"`
	OS          []string `toml:"os,omitempty"`
	Arch        []string `toml:"arch,omitempty"`
}

// RuntimeDef is one runtime within a ProviderManifest (§4.4).
type RuntimeDef struct {
	Name          string                 `toml:"name"`
	Aliases       []string               `toml:"aliases,omitempty"`
	Executable    string                 `toml:"executable"`
	CommandPrefix []string               `toml:"command_prefix,omitempty"`
	Ecosystem     string                 `toml:"ecosystem,omitempty"`
	Source        *DownloadSource        `toml:"source,omitempty"`
	ArchiveLayout *ArchiveLayout         `toml:"archive_layout,omitempty"`
	BinaryLayout  *BinaryLayout          `toml:"binary_layout,omitempty"`
	Constraints   []ConstraintRule       `toml:"constraints,omitempty"`
	Platform      *PlatformConstraintDef `toml:"platform,omitempty"`
	Bundled       *BundledRuntimeDef     `toml:"bundled,omitempty"`
	ManagedBy     string                 `toml:"managed_by,omitempty"`
	PostExtract   []string               `toml:"post_extract,omitempty"`
}

// ProviderManifest is the TOML-level document for one provider (§4.4).
type ProviderManifest struct {
	Provider ProviderMeta `toml:"provider"`
	Runtimes []RuntimeDef `toml:"runtimes"`
	Platform *PlatformConstraintDef `toml:"platform,omitempty"`
}

// RuntimeMetadata is the resolved, queryable form of a RuntimeDef after
// provider-level and runtime-level platform constraints have been merged.
type RuntimeMetadata struct {
	Def          RuntimeDef
	ProviderName string
	Platform     version.Constraint
}

// toPlatformConstraint converts the TOML-facing def into a version.Constraint.
// A nil def means "unconstrained".
func toPlatformConstraint(label string, def *PlatformConstraintDef) version.Constraint {
	if def == nil {
		return version.AnyPlatform()
	}
	if len(def.OS) == 0 && len(def.Arch) == 0 {
		return version.AnyPlatform()
	}

	oses := def.OS
	if len(oses) == 0 {
		oses = []string{"windows", "linux", "macos", "other"}
	}
	arches := def.Arch
	if len(arches) == 0 {
		arches = []string{"x86", "x86_64", "aarch64", "other"}
	}

	var platforms []version.Platform
	for _, o := range oses {
		for _, a := range arches {
			platforms = append(platforms, version.Platform{OS: parseOS(o), Arch: parseArch(a)})
		}
	}

	l := label
	if l == "" {
		l = def.Label
	}
	return version.NewConstraint(l, def.Description, platforms...)
}

func parseOS(s string) version.OS {
	switch s {
	case "windows":
		return version.OSWindows
	case "linux":
		return version.OSLinux
	case "macos":
		return version.OSMacOS
	default:
		return version.OSOther
	}
}

func parseArch(s string) version.Arch {
	switch s {
	case "x86":
		return version.ArchX86
	case "x86_64", "amd64":
		return version.ArchX86_64
	case "aarch64", "arm64":
		return version.ArchARM64
	default:
		return version.ArchOther
	}
}
