// Package manifest persists the link manifest as a TOML file inside the
// synchronized repository, so every machine sharing the repository converges
// on the same entry set after a pull.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// FileName is the manifest's location relative to the repository root.
const FileName = "manifest.toml"

// TOMLStore reads and writes the manifest file. Writes go through a
// temporary file and rename, so a failed save never truncates the manifest.
type TOMLStore struct {
	path string
}

var _ nsync.ManifestStore = (*TOMLStore)(nil)

// NewTOMLStore creates a store for the manifest at repoDir/manifest.toml.
func NewTOMLStore(repoDir string) *TOMLStore {
	return &TOMLStore{path: filepath.Join(repoDir, FileName)}
}

// document is the on-disk shape. Modes are serialized as octal strings
// ("0644") so diffs read the way permissions are written everywhere else.
type document struct {
	Entry []entryDoc `toml:"entry"`
}

type entryDoc struct {
	Path   string `toml:"path"`
	Stored string `toml:"stored"`
	Mode   string `toml:"mode"`
	Kind   string `toml:"kind"`
}

// Load reads the manifest. A missing file yields an empty manifest.
func (s *TOMLStore) Load() (*nsync.Manifest, error) {
	m := nsync.NewManifest()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", s.path, err)
	}

	for _, e := range doc.Entry {
		mode, err := strconv.ParseUint(e.Mode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %s: bad mode %q: %w", e.Path, e.Mode, err)
		}
		entry := nsync.LinkEntry{
			Path:   e.Path,
			Stored: e.Stored,
			Mode:   fs.FileMode(mode),
			Kind:   nsync.Kind(e.Kind),
		}
		if err := m.Add(entry); err != nil {
			return nil, fmt.Errorf("manifest entry %s: %w", e.Path, err)
		}
	}
	return m, nil
}

// Save writes the manifest atomically, entries sorted by path.
func (s *TOMLStore) Save(m *nsync.Manifest) error {
	doc := document{}
	for _, e := range m.Entries() {
		doc.Entry = append(doc.Entry, entryDoc{
			Path:   e.Path,
			Stored: e.Stored,
			Mode:   fmt.Sprintf("%04o", uint32(e.Mode)),
			Kind:   string(e.Kind),
		})
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".manifest-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}
