// Package projectconfig implements the project configuration and fallback
// rules of C8: discovering vx.toml by walking upward from the current
// directory, exposing its tool/env/companion tables, and applying the
// normative bundled-tool fallback table (§4.8). Grounded on the teacher's
// internal/config.Config (a flat struct loaded from a single file, default
// value when absent) with the loader itself rebuilt for TOML since
// vx.toml/provider manifests are flat tables, not CUE (see DESIGN.md).
package projectconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the project configuration file name (§6).
const FileName = "vx.toml"

// Config is the parsed form of a project's vx.toml (§4.8, §6).
type Config struct {
	Tools     map[string]string `toml:"tools"`
	Env       map[string]string `toml:"env"`
	Companion []string          `toml:"companion"`

	// Dir is the directory vx.toml was found in, not part of the TOML
	// schema itself; set by Discover for callers that need the project root.
	Dir string `toml:"-"`
}

// bundledFallback is the normative table from §4.8: a tool name not
// directly listed in [tools] falls back to its primary runtime's version,
// but only for the tools named here. Everything else (notably rustup,
// pnpm, yarn, bun, uv) must be listed explicitly or is left unresolved.
var bundledFallback = map[string]string{
	"cargo":  "rust",
	"rustc":  "rust",
	"npm":    "node",
	"npx":    "node",
	"pip":    "python",
	"pip3":   "python",
	"gofmt":  "go",
}

// Load parses a single vx.toml file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("projectconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("projectconfig: parse %s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	return &cfg, nil
}

// Discoverer finds and caches a project's vx.toml for the lifetime of one
// process (§4.8: "Cache the path per process").
type Discoverer struct {
	found    bool
	resolved bool
	path     string
	cfg      *Config
}

// NewDiscoverer creates an empty, uncached Discoverer.
func NewDiscoverer() *Discoverer {
	return &Discoverer{}
}

// Discover walks upward from startDir until it finds a vx.toml, returning
// the parsed Config. The first call performs the walk and caches the
// result; subsequent calls (even with a different startDir) return the
// cached result, matching the teacher's "first one wins, cached per
// process" discovery semantics. Returns (nil, nil) if no vx.toml exists
// anywhere above startDir.
func (d *Discoverer) Discover(startDir string) (*Config, error) {
	if d.resolved {
		return d.cfg, nil
	}
	d.resolved = true

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("projectconfig: resolve start dir: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, statErr := os.Stat(candidate); statErr == nil {
			cfg, err := Load(candidate)
			if err != nil {
				return nil, err
			}
			d.found = true
			d.path = candidate
			d.cfg = cfg
			return cfg, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Path returns the discovered vx.toml path, or "" if Discover found none or
// hasn't been called yet.
func (d *Discoverer) Path() string { return d.path }

// GetVersion returns the directly configured version for tool, if any.
func (c *Config) GetVersion(tool string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.Tools[tool]
	return v, ok
}

// GetVersionWithFallback returns the directly configured version for tool;
// failing that, if tool is in the bundled-tool table (§4.8), the primary
// runtime's configured version; otherwise "", false. Tools explicitly
// excluded from fallback (rustup, pnpm, yarn, bun, uv) never fall back even
// if their "primary" ecosystem tool is configured.
func (c *Config) GetVersionWithFallback(tool string) (string, bool) {
	if c == nil {
		return "", false
	}
	if v, ok := c.GetVersion(tool); ok {
		return v, true
	}
	primary, ok := bundledFallback[tool]
	if !ok {
		return "", false
	}
	return c.GetVersion(primary)
}

// primariesSharingPrimary lists the bundled tools whose primary is primary,
// so they can be excluded from its companions; companions of "rust" must
// exclude "cargo"/"rustc" even though those aren't themselves in [tools].
func primariesSharingPrimary(primary string) []string {
	var out []string
	for bundled, p := range bundledFallback {
		if p == primary {
			out = append(out, bundled)
		}
	}
	return out
}

// GetCompanionTools returns every [tools] entry except primary itself, any
// bundled sibling of primary, and — when primary is itself a bundled tool
// (e.g. invoking "npm") — primary's own ecosystem parent ("node"), since
// that parent's environment is already the one being prepared for primary
// (§3 CompanionTool, §4.8).
func (c *Config) GetCompanionTools(primary string) []CompanionTool {
	if c == nil {
		return nil
	}
	excluded := make(map[string]struct{})
	excluded[primary] = struct{}{}
	for _, sibling := range primariesSharingPrimary(primary) {
		excluded[sibling] = struct{}{}
	}
	if parent, ok := bundledFallback[primary]; ok {
		excluded[parent] = struct{}{}
	}

	var out []CompanionTool
	for name, ver := range c.Tools {
		if _, skip := excluded[name]; skip {
			continue
		}
		out = append(out, CompanionTool{Name: name, Version: ver})
	}
	return out
}

// CompanionTool is a project-declared runtime that isn't the one being
// invoked but whose environment must still be prepared (§3).
type CompanionTool struct {
	Name    string
	Version string
}
