package nsync

// VCS is the version-control collaborator. Operations are atomic,
// all-or-nothing steps; failures surface as *VcsError carrying the
// underlying tool's diagnostic text.
type VCS interface {
	// Commit stages and commits the given repository-relative paths.
	// An empty paths slice commits all outstanding changes.
	Commit(paths []string, message string) error

	// Push publishes local commits to the remote.
	Push() error

	// Pull fetches and merges remote changes into the working directory.
	Pull() error
}
