package testutil

import (
	"path/filepath"
	"testing"

	"github.com/neutron-sync/neutron-sync/internal/manifest"
	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// RegistryFixture bundles a registry wired against a temp repository, a fake
// VCS, and a home directory covered by the translation table.
type RegistryFixture struct {
	Registry *nsync.Registry
	RepoDir  string
	HomeDir  string
	VCS      *FakeVCS
	Store    nsync.ManifestStore
}

// NewRegistryFixture creates a registry over t.TempDir with "_home" mapping
// to a sibling home directory. secrets may be nil when no secret entries are
// exercised.
func NewRegistryFixture(t *testing.T, secrets nsync.SecretCipher) *RegistryFixture {
	t.Helper()

	base := t.TempDir()
	repoDir := filepath.Join(base, "repo")
	homeDir := filepath.Join(base, "home")
	mustMkdir(t, repoDir)
	mustMkdir(t, homeDir)

	store := manifest.NewTOMLStore(repoDir)
	vcs := NewFakeVCS()
	trans := nsync.NewTranslator(map[string]string{
		"_home": homeDir,
		"_root": base,
	})

	reg := nsync.NewRegistry(repoDir, store, vcs, trans, secrets, nsync.NewNopLogger(), nsync.RealClock{})
	return &RegistryFixture{
		Registry: reg,
		RepoDir:  repoDir,
		HomeDir:  homeDir,
		VCS:      vcs,
		Store:    store,
	}
}
