package manifest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/terassyi/vx/internal/version"
)

// ManifestIndex is the built, read-only lookup structure produced by
// LoadAll (§4.4): runtimes by canonical name, aliases resolving
// transparently to their canonical name, and provider metadata by name.
type ManifestIndex struct {
	runtimes  map[string]*RuntimeMetadata
	aliases   map[string]string
	providers map[string]ProviderMeta
}

// NewIndex builds a ManifestIndex from a set of manifests, already ordered
// lowest to highest priority. Later manifests override earlier ones by
// provider.name: a later manifest drops every runtime and alias an earlier
// manifest of the same provider declared, and a later runtime of the same
// name wins entirely (the whole RuntimeDef is replaced, not field-merged).
func NewIndex(manifests ...ProviderManifest) *ManifestIndex {
	idx := &ManifestIndex{
		runtimes:  make(map[string]*RuntimeMetadata),
		aliases:   make(map[string]string),
		providers: make(map[string]ProviderMeta),
	}
	for _, m := range manifests {
		idx.merge(m)
	}
	return idx
}

func (idx *ManifestIndex) merge(m ProviderManifest) {
	for name, meta := range idx.runtimes {
		if meta.ProviderName != m.Provider.Name {
			continue
		}
		for _, alias := range meta.Def.Aliases {
			if idx.aliases[alias] == name {
				delete(idx.aliases, alias)
			}
		}
		delete(idx.runtimes, name)
	}

	idx.providers[m.Provider.Name] = m.Provider

	providerPlatform := toPlatformConstraint(m.Provider.Name, m.Platform)

	for _, rt := range m.Runtimes {
		runtimePlatform := toPlatformConstraint(rt.Name, rt.Platform)
		merged := version.Intersect(providerPlatform, runtimePlatform)

		idx.runtimes[rt.Name] = &RuntimeMetadata{
			Def:          rt,
			ProviderName: m.Provider.Name,
			Platform:     merged,
		}
		for _, alias := range rt.Aliases {
			idx.aliases[alias] = rt.Name
		}
	}
}

// Resolve maps a name or alias to its canonical runtime name.
func (idx *ManifestIndex) Resolve(nameOrAlias string) (string, bool) {
	if _, ok := idx.runtimes[nameOrAlias]; ok {
		return nameOrAlias, true
	}
	if canonical, ok := idx.aliases[nameOrAlias]; ok {
		return canonical, true
	}
	return "", false
}

// Lookup resolves a name or alias and returns its metadata.
func (idx *ManifestIndex) Lookup(nameOrAlias string) (*RuntimeMetadata, bool) {
	canonical, ok := idx.Resolve(nameOrAlias)
	if !ok {
		return nil, false
	}
	return idx.runtimes[canonical], true
}

// Provider returns provider metadata by name.
func (idx *ManifestIndex) Provider(name string) (ProviderMeta, bool) {
	p, ok := idx.providers[name]
	return p, ok
}

// RuntimeNames returns all canonical runtime names, sorted.
func (idx *ManifestIndex) RuntimeNames() []string {
	names := make([]string, 0, len(idx.runtimes))
	for name := range idx.runtimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir reads every *.toml file directly inside dir and decodes each as a
// ProviderManifest. A missing directory is not an error — it simply
// contributes nothing (user and project override directories are optional).
func LoadDir(dir string) ([]ProviderManifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest: read dir %s: %w", dir, err)
	}

	var manifests []ProviderManifest
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		m, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// LoadFile decodes a single TOML file into a ProviderManifest.
func LoadFile(path string) (ProviderManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProviderManifest{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadFS decodes a single TOML file out of an fs.FS, for embedded manifests.
func LoadFS(fsys fs.FS, path string) (ProviderManifest, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return ProviderManifest{}, fmt.Errorf("manifest: read embedded %s: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes decodes raw TOML bytes into a ProviderManifest.
func LoadBytes(data []byte, sourceName string) (ProviderManifest, error) {
	var m ProviderManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return ProviderManifest{}, fmt.Errorf("manifest: decode %s: %w", sourceName, err)
	}
	if m.Provider.Name == "" {
		return ProviderManifest{}, fmt.Errorf("manifest: %s: provider.name is required", sourceName)
	}
	slog.Debug("loaded provider manifest", "provider", m.Provider.Name, "source", sourceName, "runtimes", len(m.Runtimes))
	return m, nil
}

// LoadAll loads manifests from the three priority sources named in §4.4 —
// embedded (fsys/embeddedDir), user override (userDir), project override
// (projectDir) — and returns a ManifestIndex with later sources winning by
// provider.name.
func LoadAll(fsys fs.FS, embeddedDir, userDir, projectDir string) (*ManifestIndex, error) {
	var all []ProviderManifest

	embedded, err := loadEmbeddedDir(fsys, embeddedDir)
	if err != nil {
		return nil, err
	}
	all = append(all, embedded...)

	userManifests, err := LoadDir(userDir)
	if err != nil {
		return nil, err
	}
	all = append(all, userManifests...)

	projectManifests, err := LoadDir(projectDir)
	if err != nil {
		return nil, err
	}
	all = append(all, projectManifests...)

	return NewIndex(all...), nil
}

func loadEmbeddedDir(fsys fs.FS, dir string) ([]ProviderManifest, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("manifest: read embedded dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var manifests []ProviderManifest
	for _, name := range names {
		m, err := LoadFS(fsys, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
