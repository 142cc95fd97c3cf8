package nsync

import (
	"fmt"
	"io/fs"
	"sort"
)

// Kind distinguishes how a linked path is represented on disk.
type Kind string

const (
	// KindFile: the original path is a symlink to a plain file in the repo.
	KindFile Kind = "file"
	// KindDirectory: the original path is a symlink to a directory in the repo.
	KindDirectory Kind = "directory"
	// KindSecret: the repo copy is encrypted to the machine identity and the
	// original path stays a regular file, rematerialized on pull.
	KindSecret Kind = "secret"
)

// LinkEntry records one tracked path: where it appears to the system, where
// its content lives inside the repository, and the permission bits captured
// at link time. Path and Stored are in translated, machine-independent form
// (e.g. "_home/.tmux.conf") so the manifest converges across machines.
type LinkEntry struct {
	Path   string
	Stored string
	Mode   fs.FileMode
	Kind   Kind
}

// Manifest is the in-memory set of tracked entries. It is loaded at the
// start of each registry operation and flushed back atomically, so no
// process-wide mutable state exists.
type Manifest struct {
	entries map[string]LinkEntry // keyed by Path
	stored  map[string]string    // Stored -> Path, for uniqueness checks
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]LinkEntry),
		stored:  make(map[string]string),
	}
}

// Add inserts an entry, enforcing uniqueness of both Path and Stored.
func (m *Manifest) Add(e LinkEntry) error {
	if _, ok := m.entries[e.Path]; ok {
		return fmt.Errorf("manifest: %s: %w", e.Path, ErrAlreadyLinked)
	}
	if other, ok := m.stored[e.Stored]; ok {
		return fmt.Errorf("manifest: stored path %s already used by %s: %w", e.Stored, other, ErrAlreadyLinked)
	}
	m.entries[e.Path] = e
	m.stored[e.Stored] = e.Path
	return nil
}

// Lookup returns the entry for a translated path.
func (m *Manifest) Lookup(path string) (LinkEntry, bool) {
	e, ok := m.entries[path]
	return e, ok
}

// LookupStored returns the entry whose repository location is stored.
func (m *Manifest) LookupStored(stored string) (LinkEntry, bool) {
	path, ok := m.stored[stored]
	if !ok {
		return LinkEntry{}, false
	}
	return m.entries[path], true
}

// Remove deletes the entry for a translated path.
func (m *Manifest) Remove(path string) error {
	e, ok := m.entries[path]
	if !ok {
		return fmt.Errorf("manifest: %s: %w", path, ErrNotTracked)
	}
	delete(m.entries, path)
	delete(m.stored, e.Stored)
	return nil
}

// Len returns the number of tracked entries.
func (m *Manifest) Len() int { return len(m.entries) }

// Entries returns all entries sorted by Path, so serialized manifests are
// stable and diffs under version control stay minimal.
func (m *Manifest) Entries() []LinkEntry {
	out := make([]LinkEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ManifestStore persists the manifest as repository-tracked metadata.
// Implementations must write atomically so a failed save never leaves a
// truncated manifest behind.
type ManifestStore interface {
	Load() (*Manifest, error)
	Save(m *Manifest) error
}
