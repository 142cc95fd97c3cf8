package manifest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neutron-sync/neutron-sync/internal/manifest"
	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

func TestTOMLStore(t *testing.T) {
	t.Run("missing file yields an empty manifest", func(t *testing.T) {
		store := manifest.NewTOMLStore(t.TempDir())
		m, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if m.Len() != 0 {
			t.Errorf("Len() = %d, want 0", m.Len())
		}
	})

	t.Run("round trip preserves entries and modes", func(t *testing.T) {
		store := manifest.NewTOMLStore(t.TempDir())

		m := nsync.NewManifest()
		entries := []nsync.LinkEntry{
			{Path: "_home/.tmux.conf", Stored: "_home/.tmux.conf", Mode: 0644, Kind: nsync.KindFile},
			{Path: "_home/.config/nvim", Stored: "_home/.config/nvim", Mode: 0755, Kind: nsync.KindDirectory},
			{Path: "_home/id_rsa", Stored: "_home/id_rsa.age", Mode: 0600, Kind: nsync.KindSecret},
		}
		for _, e := range entries {
			if err := m.Add(e); err != nil {
				t.Fatalf("Add(%s) error = %v", e.Path, err)
			}
		}
		if err := store.Save(m); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded.Len() != len(entries) {
			t.Fatalf("Len() = %d, want %d", loaded.Len(), len(entries))
		}
		for _, want := range entries {
			got, ok := loaded.Lookup(want.Path)
			if !ok {
				t.Fatalf("Lookup(%s) missing", want.Path)
			}
			if got != want {
				t.Errorf("Lookup(%s) = %+v, want %+v", want.Path, got, want)
			}
		}
	})

	t.Run("modes are written as octal strings", func(t *testing.T) {
		dir := t.TempDir()
		store := manifest.NewTOMLStore(dir)

		m := nsync.NewManifest()
		if err := m.Add(nsync.LinkEntry{
			Path: "_home/.netrc", Stored: "_home/.netrc", Mode: 0600, Kind: nsync.KindFile,
		}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if err := store.Save(m); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !strings.Contains(string(data), `mode = "0600"`) {
			t.Errorf("manifest does not contain octal mode:\n%s", data)
		}
	})

	t.Run("bad mode fails to load", func(t *testing.T) {
		dir := t.TempDir()
		body := "[[entry]]\npath = \"_home/.x\"\nstored = \"_home/.x\"\nmode = \"rw-r--r--\"\nkind = \"file\"\n"
		if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(body), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := manifest.NewTOMLStore(dir).Load(); err == nil {
			t.Fatal("Load() error = nil, want parse failure")
		}
	})

	t.Run("save overwrites atomically", func(t *testing.T) {
		dir := t.TempDir()
		store := manifest.NewTOMLStore(dir)

		m := nsync.NewManifest()
		if err := m.Add(nsync.LinkEntry{
			Path: "_home/.bashrc", Stored: "_home/.bashrc", Mode: 0644, Kind: nsync.KindFile,
		}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if err := store.Save(m); err != nil {
			t.Fatalf("first Save() error = %v", err)
		}
		if err := m.Remove("_home/.bashrc"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if err := store.Save(m); err != nil {
			t.Fatalf("second Save() error = %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded.Len() != 0 {
			t.Errorf("Len() = %d, want 0", loaded.Len())
		}

		// No temp files left behind.
		names, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(names) != 1 || names[0].Name() != manifest.FileName {
			t.Errorf("directory contents = %v, want only %s", names, manifest.FileName)
		}
	})
}
