package nsync

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry state mismatches and filesystem failures.
// Callers match these with errors.Is; the wrapped message carries the
// offending path.
var (
	// ErrNotFound indicates the path does not exist on the filesystem.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyLinked indicates the path is already tracked by the manifest.
	ErrAlreadyLinked = errors.New("already linked")

	// ErrNotTracked indicates no manifest entry matches the path.
	ErrNotTracked = errors.New("not tracked")

	// ErrPathConflict indicates a reconcile would overwrite a local file
	// that is not the expected symbolic link.
	ErrPathConflict = errors.New("path conflict")

	// ErrPermissionDenied indicates the filesystem refused an operation.
	ErrPermissionDenied = errors.New("permission denied")
)

// VcsError wraps a failure from the version-control collaborator, carrying
// the underlying tool's diagnostic output verbatim.
type VcsError struct {
	Op     string // "commit", "push", or "pull"
	Output string // combined stdout/stderr from the tool
	Err    error
}

func (e *VcsError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("vcs %s: %v: %s", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("vcs %s: %v", e.Op, e.Err)
}

func (e *VcsError) Unwrap() error { return e.Err }
