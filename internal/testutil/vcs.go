package testutil

import (
	"sync"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// FakeVCS records collaborator calls without touching git. Error fields, when
// set, are returned by the corresponding operation.
type FakeVCS struct {
	mu sync.Mutex

	Commits   []FakeCommit
	Pushes    int
	Pulls     int
	CommitErr error
	PushErr   error
	PullErr   error

	// PullHook, when set, runs on each Pull. Tests use it to mutate the
	// repository the way a merged remote change would.
	PullHook func() error
}

// FakeCommit records one Commit call.
type FakeCommit struct {
	Paths   []string
	Message string
}

var _ nsync.VCS = (*FakeVCS)(nil)

func NewFakeVCS() *FakeVCS { return &FakeVCS{} }

func (f *FakeVCS) Commit(paths []string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommitErr != nil {
		return f.CommitErr
	}
	f.Commits = append(f.Commits, FakeCommit{Paths: paths, Message: message})
	return nil
}

func (f *FakeVCS) Push() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PushErr != nil {
		return f.PushErr
	}
	f.Pushes++
	return nil
}

func (f *FakeVCS) Pull() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PullErr != nil {
		return f.PullErr
	}
	f.Pulls++
	if f.PullHook != nil {
		return f.PullHook()
	}
	return nil
}
