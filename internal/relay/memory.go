package relay

import (
	"context"
	"sync"
	"time"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// janitorInterval is how often the background sweep evicts expired entries.
// Correctness does not depend on the sweep: GetAndDelete checks expiry at
// access time, so the janitor only bounds memory growth.
const janitorInterval = time.Minute

// MemoryStore is an in-memory Store. A single mutex serializes access, which
// satisfies the atomic get-and-delete contract for a single service instance
// only. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   nsync.Clock
	done    chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	blob      []byte
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore and starts its janitor.
func NewMemoryStore(clock nsync.Clock) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clock,
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Put stores a blob under code with an absolute expiry of now+ttl.
func (s *MemoryStore) Put(_ context.Context, code string, blob []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.entries[code] = memoryEntry{
		blob:      stored,
		expiresAt: s.clock.Now().Add(ttl),
	}
	return nil
}

// GetAndDelete atomically fetches and deletes the blob for code.
func (s *MemoryStore) GetAndDelete(_ context.Context, code string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[code]
	if !ok {
		return nil, ErrTransferNotFound
	}
	delete(s.entries, code)
	if !s.clock.Now().Before(e.expiresAt) {
		return nil, ErrTransferNotFound
	}
	return e.blob, nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for code, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, code)
		}
	}
}
