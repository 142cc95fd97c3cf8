package manifest

import (
	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// MemoryStore holds a manifest in memory. It lets the registry be exercised
// without a live repository.
type MemoryStore struct {
	entries []nsync.LinkEntry
}

var _ nsync.ManifestStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory manifest store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load rebuilds a manifest from the stored entries.
func (s *MemoryStore) Load() (*nsync.Manifest, error) {
	m := nsync.NewManifest()
	for _, e := range s.entries {
		if err := m.Add(e); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Save replaces the stored entries.
func (s *MemoryStore) Save(m *nsync.Manifest) error {
	s.entries = m.Entries()
	return nil
}
