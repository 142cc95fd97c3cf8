package nsync

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Registry maintains the set of tracked entries and keeps the local
// filesystem consistent with the shared manifest. Operations are short,
// blocking, and non-reentrant; the version-control collaborator's own
// working-directory lock is the only serialization primitive.
type Registry struct {
	repoDir  string
	manifest ManifestStore
	vcs      VCS
	trans    *Translator
	secrets  SecretCipher
	logger   Logger
	clock    Clock
}

// NewRegistry creates a Registry rooted at repoDir.
func NewRegistry(repoDir string, store ManifestStore, vcs VCS, trans *Translator, secrets SecretCipher, logger Logger, clock Clock) *Registry {
	return &Registry{
		repoDir:  repoDir,
		manifest: store,
		vcs:      vcs,
		trans:    trans,
		secrets:  secrets,
		logger:   logger,
		clock:    clock,
	}
}

// ReconcileReport describes what Pull changed on the local filesystem.
type ReconcileReport struct {
	Linked    []string // symlinks (re)created
	Restored  []string // secret files rematerialized
	Removed   []string // stale symlinks removed
	Conflicts []PathConflict
}

// PathConflict names a local path Pull refused to overwrite.
type PathConflict struct {
	Path   string
	Reason string
}

// Empty reports whether the reconcile changed nothing and found no conflicts.
func (r *ReconcileReport) Empty() bool {
	return len(r.Linked) == 0 && len(r.Restored) == 0 && len(r.Removed) == 0 && len(r.Conflicts) == 0
}

// Link moves the content at rawPath into the repository, replaces the
// original location with a symlink, records permissions in the manifest, and
// commits. When secret is true the repository copy is encrypted to the
// machine identity and the original stays a regular file.
//
// A failed Link leaves the original file untouched.
func (r *Registry) Link(rawPath string, secret bool) (LinkEntry, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return LinkEntry{}, fmt.Errorf("resolving %s: %w", rawPath, err)
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return LinkEntry{}, wrapFSErr(err, abs)
	}

	repoRel, err := r.trans.ToRepo(abs)
	if err != nil {
		return LinkEntry{}, err
	}

	m, err := r.manifest.Load()
	if err != nil {
		return LinkEntry{}, fmt.Errorf("loading manifest: %w", err)
	}
	if _, ok := m.Lookup(repoRel); ok {
		return LinkEntry{}, fmt.Errorf("%s: %w", abs, ErrAlreadyLinked)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return LinkEntry{}, fmt.Errorf("%s is already a symbolic link: %w", abs, ErrPathConflict)
	}

	entry := LinkEntry{
		Path:   repoRel,
		Stored: repoRel,
		Mode:   info.Mode().Perm(),
		Kind:   KindFile,
	}
	switch {
	case secret:
		if info.IsDir() {
			return LinkEntry{}, fmt.Errorf("%s: secret entries must be regular files", abs)
		}
		entry.Kind = KindSecret
		entry.Stored = repoRel + ".age"
	case info.IsDir():
		entry.Kind = KindDirectory
	}

	if _, ok := m.LookupStored(entry.Stored); ok {
		return LinkEntry{}, fmt.Errorf("stored path %s: %w", entry.Stored, ErrAlreadyLinked)
	}

	storedAbs := r.storedPath(entry)
	if err := os.MkdirAll(filepath.Dir(storedAbs), 0755); err != nil {
		return LinkEntry{}, wrapFSErr(err, filepath.Dir(storedAbs))
	}

	if entry.Kind == KindSecret {
		if err := r.sealSecret(abs, storedAbs); err != nil {
			return LinkEntry{}, err
		}
	} else {
		if err := movePath(abs, storedAbs); err != nil {
			return LinkEntry{}, err
		}
		if err := os.Symlink(storedAbs, abs); err != nil {
			// Put the content back; the original must survive a failed link.
			if rbErr := movePath(storedAbs, abs); rbErr != nil {
				r.logger.Error("rollback failed", "path", abs, "error", rbErr)
			}
			return LinkEntry{}, wrapFSErr(err, abs)
		}
	}

	if err := m.Add(entry); err != nil {
		r.rollbackLink(entry, abs, storedAbs)
		return LinkEntry{}, err
	}
	if err := r.manifest.Save(m); err != nil {
		r.rollbackLink(entry, abs, storedAbs)
		return LinkEntry{}, fmt.Errorf("saving manifest: %w", err)
	}

	if err := r.vcs.Commit(nil, r.commitMessage("link")); err != nil {
		return LinkEntry{}, err
	}

	r.logger.Info("linked", "path", abs, "stored", entry.Stored, "kind", string(entry.Kind))
	return entry, nil
}

// Unlink reverses Link: content is restored to the original location with its
// recorded permissions, the repository copy and the manifest entry are
// removed, and the change is committed.
func (r *Registry) Unlink(rawPath string) error {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", rawPath, err)
	}

	repoRel, err := r.trans.ToRepo(abs)
	if err != nil {
		return err
	}

	m, err := r.manifest.Load()
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	entry, ok := m.Lookup(repoRel)
	if !ok {
		return fmt.Errorf("%s: %w", abs, ErrNotTracked)
	}
	storedAbs := r.storedPath(entry)

	if entry.Kind == KindSecret {
		// The original location already holds the plaintext; rematerialize
		// only if it went missing.
		if _, err := os.Lstat(abs); os.IsNotExist(err) {
			if err := r.openSecret(storedAbs, abs, entry.Mode); err != nil {
				return err
			}
		}
		if err := os.Remove(storedAbs); err != nil && !os.IsNotExist(err) {
			return wrapFSErr(err, storedAbs)
		}
	} else {
		if fi, err := os.Lstat(abs); err == nil {
			if fi.Mode()&os.ModeSymlink == 0 {
				return fmt.Errorf("%s is not a symbolic link: %w", abs, ErrPathConflict)
			}
			if err := os.Remove(abs); err != nil {
				return wrapFSErr(err, abs)
			}
		}
		if err := movePath(storedAbs, abs); err != nil {
			return err
		}
		if err := os.Chmod(abs, entry.Mode); err != nil {
			return wrapFSErr(err, abs)
		}
	}

	if err := m.Remove(repoRel); err != nil {
		return err
	}
	if err := r.manifest.Save(m); err != nil {
		return fmt.Errorf("saving manifest: %w", err)
	}
	if err := r.vcs.Commit(nil, r.commitMessage("unlink")); err != nil {
		return err
	}

	r.logger.Info("unlinked", "path", abs)
	return nil
}

// Save commits all outstanding repository changes and pushes them.
func (r *Registry) Save() error {
	if err := r.vcs.Commit(nil, r.commitMessage("save")); err != nil {
		return err
	}
	return r.vcs.Push()
}

// Pull fetches remote changes and reconciles the local filesystem with the
// manifest: missing symlinks are (re)created with their recorded permissions,
// missing secret files are rematerialized, and symlinks whose entries
// disappeared are removed. A local file occupying an entry's path that is not
// the expected symlink is reported as a conflict, never overwritten.
//
// Pull is idempotent: running it twice with no intervening remote change
// leaves the filesystem identical.
func (r *Registry) Pull() (*ReconcileReport, error) {
	before, err := r.manifest.Load()
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	if err := r.vcs.Pull(); err != nil {
		return nil, err
	}

	m, err := r.manifest.Load()
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	report := &ReconcileReport{}
	for _, entry := range m.Entries() {
		r.reconcileEntry(entry, report)
	}
	r.removeDeletedEntries(before, m, report)
	if err := r.removeStaleLinks(m, report); err != nil {
		return nil, err
	}

	r.logger.Info("pull reconciled",
		"linked", len(report.Linked),
		"restored", len(report.Restored),
		"removed", len(report.Removed),
		"conflicts", len(report.Conflicts))
	return report, nil
}

// Entries returns the current manifest contents sorted by path.
func (r *Registry) Entries() ([]LinkEntry, error) {
	m, err := r.manifest.Load()
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	return m.Entries(), nil
}

func (r *Registry) reconcileEntry(entry LinkEntry, report *ReconcileReport) {
	local, err := r.trans.ToLocal(entry.Path)
	if err != nil {
		report.Conflicts = append(report.Conflicts, PathConflict{Path: entry.Path, Reason: err.Error()})
		return
	}
	storedAbs := r.storedPath(entry)

	fi, err := os.Lstat(local)
	switch {
	case os.IsNotExist(err):
		if entry.Kind == KindSecret {
			if err := r.openSecret(storedAbs, local, entry.Mode); err != nil {
				report.Conflicts = append(report.Conflicts, PathConflict{Path: local, Reason: err.Error()})
				return
			}
			report.Restored = append(report.Restored, local)
			return
		}
		if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
			report.Conflicts = append(report.Conflicts, PathConflict{Path: local, Reason: err.Error()})
			return
		}
		if err := os.Symlink(storedAbs, local); err != nil {
			report.Conflicts = append(report.Conflicts, PathConflict{Path: local, Reason: err.Error()})
			return
		}
		if err := os.Chmod(storedAbs, entry.Mode); err != nil {
			report.Conflicts = append(report.Conflicts, PathConflict{Path: local, Reason: err.Error()})
			return
		}
		report.Linked = append(report.Linked, local)

	case err != nil:
		report.Conflicts = append(report.Conflicts, PathConflict{Path: local, Reason: err.Error()})

	case entry.Kind == KindSecret:
		if fi.Mode().IsRegular() {
			return // plaintext already present, leave it alone
		}
		report.Conflicts = append(report.Conflicts, PathConflict{
			Path:   local,
			Reason: "expected a regular file for a secret entry",
		})

	case fi.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(local)
		if err != nil {
			report.Conflicts = append(report.Conflicts, PathConflict{Path: local, Reason: err.Error()})
			return
		}
		if target != storedAbs {
			report.Conflicts = append(report.Conflicts, PathConflict{
				Path:   local,
				Reason: fmt.Sprintf("symlink points at %s, expected %s", target, storedAbs),
			})
			return
		}
		// Link is live; re-apply recorded permissions to the stored content.
		if err := os.Chmod(storedAbs, entry.Mode); err != nil {
			report.Conflicts = append(report.Conflicts, PathConflict{Path: local, Reason: err.Error()})
		}

	default:
		report.Conflicts = append(report.Conflicts, PathConflict{
			Path:   local,
			Reason: "a local file occupies this path and is not the expected symlink",
		})
	}
}

// removeDeletedEntries removes local symlinks for entries the pull deleted
// from the manifest. A remote unlink deletes the repository copy along with
// the entry, leaving the link dangling, so this works off the manifest diff
// rather than repository content.
func (r *Registry) removeDeletedEntries(before, after *Manifest, report *ReconcileReport) {
	for _, entry := range before.Entries() {
		if _, ok := after.Lookup(entry.Path); ok {
			continue
		}
		local, err := r.trans.ToLocal(entry.Path)
		if err != nil {
			continue
		}
		fi, err := os.Lstat(local)
		if err != nil || fi.Mode()&os.ModeSymlink == 0 {
			// Secret entries leave a plain file behind; removing content is
			// the user's call, not pull's.
			continue
		}
		target, err := os.Readlink(local)
		if err != nil || target != r.storedPath(entry) {
			continue
		}
		if err := os.Remove(local); err != nil {
			report.Conflicts = append(report.Conflicts, PathConflict{Path: local, Reason: err.Error()})
			continue
		}
		report.Removed = append(report.Removed, local)
	}
}

// removeStaleLinks walks the repository and removes local symlinks that point
// at repository content no manifest entry covers anymore. Anything that is
// not exactly such a symlink is left untouched.
func (r *Registry) removeStaleLinks(m *Manifest, report *ReconcileReport) error {
	return filepath.WalkDir(r.repoDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(r.repoDir, path)
		if err != nil || rel == "." {
			return nil
		}
		name := d.Name()
		if name == ".git" || name == manifestIgnoreName {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		storedRel := filepath.ToSlash(rel)
		if _, ok := m.LookupStored(storedRel); ok {
			if d.IsDir() {
				return filepath.SkipDir // tracked directory, contents are its own business
			}
			return nil
		}
		if strings.HasSuffix(storedRel, ".age") {
			return nil // secret copies never leave symlinks behind
		}

		local, err := r.trans.ToLocal(storedRel)
		if err != nil {
			return nil // path outside the translation table, not ours
		}
		fi, err := os.Lstat(local)
		if err != nil || fi.Mode()&os.ModeSymlink == 0 {
			return nil
		}
		target, err := os.Readlink(local)
		if err != nil || target != path {
			return nil
		}
		if err := os.Remove(local); err != nil {
			return wrapFSErr(err, local)
		}
		report.Removed = append(report.Removed, local)
		return nil
	})
}

// manifestIgnoreName is the manifest's file name inside the repository; the
// stale-link walk must not treat it as content.
const manifestIgnoreName = "manifest.toml"

func (r *Registry) storedPath(entry LinkEntry) string {
	return filepath.Join(r.repoDir, filepath.FromSlash(entry.Stored))
}

func (r *Registry) commitMessage(op string) string {
	return fmt.Sprintf("nsync %s @ %s", op, r.clock.Now().UTC().Format(time.RFC3339))
}

func (r *Registry) sealSecret(src, dst string) error {
	if r.secrets == nil {
		return fmt.Errorf("no machine identity configured; run `nsync identity init`")
	}
	in, err := os.Open(src)
	if err != nil {
		return wrapFSErr(err, src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return wrapFSErr(err, dst)
	}
	if err := r.secrets.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("encrypting %s: %w", src, err)
	}
	return wrapFSErr(out.Close(), dst)
}

func (r *Registry) openSecret(src, dst string, mode os.FileMode) error {
	if r.secrets == nil {
		return fmt.Errorf("no machine identity configured; run `nsync identity init`")
	}
	in, err := os.Open(src)
	if err != nil {
		return wrapFSErr(err, src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return wrapFSErr(err, filepath.Dir(dst))
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return wrapFSErr(err, dst)
	}
	if err := r.secrets.Decrypt(in, out); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("decrypting %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return wrapFSErr(err, dst)
	}
	return wrapFSErr(os.Chmod(dst, mode), dst)
}

// rollbackLink undoes the filesystem half of a link after a manifest failure.
func (r *Registry) rollbackLink(entry LinkEntry, abs, storedAbs string) {
	if entry.Kind == KindSecret {
		os.Remove(storedAbs)
		return
	}
	if err := os.Remove(abs); err != nil {
		r.logger.Error("rollback failed", "path", abs, "error", err)
		return
	}
	if err := movePath(storedAbs, abs); err != nil {
		r.logger.Error("rollback failed", "path", abs, "error", err)
	}
}
