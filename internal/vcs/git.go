// Package vcs adapts the git command line to the nsync.VCS collaborator
// contract. Failures pass through the tool's diagnostic output verbatim;
// nothing is retried, since git operations are explicit user-visible steps.
package vcs

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// Git runs git against a repository working directory.
type Git struct {
	repoDir string
}

var _ nsync.VCS = (*Git)(nil)

// NewGit creates a Git collaborator for the repository at repoDir.
func NewGit(repoDir string) *Git {
	return &Git{repoDir: repoDir}
}

// Commit stages and commits the given repository-relative paths; an empty
// slice commits all outstanding changes. Committing when nothing changed is
// not an error.
func (g *Git) Commit(paths []string, message string) error {
	addArgs := []string{"add", "-A"}
	if len(paths) > 0 {
		addArgs = append(addArgs, "--")
		addArgs = append(addArgs, paths...)
	}
	if _, err := g.run(addArgs...); err != nil {
		return err
	}

	commitArgs := []string{"commit", "-m", message}
	if len(paths) > 0 {
		commitArgs = append(commitArgs, "--")
		commitArgs = append(commitArgs, paths...)
	}
	out, err := g.run(commitArgs...)
	if err != nil && !strings.Contains(out, "nothing to commit") && !strings.Contains(out, "nothing added to commit") {
		return err
	}
	return nil
}

// Push publishes local commits to the configured remote.
func (g *Git) Push() error {
	_, err := g.run("push")
	return err
}

// Pull fetches and merges remote changes.
func (g *Git) Pull() error {
	_, err := g.run("pull")
	return err
}

// run executes git with the given arguments, returning combined output.
func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.repoDir
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		op := "git"
		if len(args) > 0 {
			op = args[0]
		}
		return output, &nsync.VcsError{
			Op:     op,
			Output: output,
			Err:    fmt.Errorf("git %s: %w", strings.Join(args, " "), err),
		}
	}
	return output, nil
}
