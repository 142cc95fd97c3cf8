package relay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
	"github.com/neutron-sync/neutron-sync/internal/relay"
	"github.com/neutron-sync/neutron-sync/internal/testutil"
)

func newSessions(t *testing.T, clock *testutil.StubClock, maxTTL time.Duration, maxSize int64) *relay.Sessions {
	t.Helper()
	store := relay.NewMemoryStore(clock)
	t.Cleanup(func() { store.Close() })
	return relay.NewSessions(store, clock, testutil.NewStubCodeGenerator(), nsync.NewNopLogger(), maxTTL, maxSize)
}

func TestSessions_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the generated code and absolute expiry", func(t *testing.T) {
		clock := testutil.FixedClock()
		s := newSessions(t, clock, 15*time.Minute, 1024)

		code, expiresAt, err := s.Create(ctx, []byte("blob"), 5*time.Minute)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if code != "code-1" {
			t.Errorf("code = %q, want code-1", code)
		}
		if want := clock.Now().Add(5 * time.Minute); !expiresAt.Equal(want) {
			t.Errorf("expiresAt = %v, want %v", expiresAt, want)
		}
	})

	t.Run("clamps the ttl to the cap", func(t *testing.T) {
		clock := testutil.FixedClock()
		s := newSessions(t, clock, 15*time.Minute, 1024)

		_, expiresAt, err := s.Create(ctx, []byte("blob"), time.Hour)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if want := clock.Now().Add(15 * time.Minute); !expiresAt.Equal(want) {
			t.Errorf("expiresAt = %v, want the 15m cap %v", expiresAt, want)
		}
	})

	t.Run("rejects oversized blobs", func(t *testing.T) {
		s := newSessions(t, testutil.FixedClock(), 15*time.Minute, 4)

		_, _, err := s.Create(ctx, []byte("too big"), time.Minute)
		if !errors.Is(err, relay.ErrTransferTooLarge) {
			t.Errorf("Create() error = %v, want ErrTransferTooLarge", err)
		}
	})

	t.Run("zero ttl session is never retrievable", func(t *testing.T) {
		s := newSessions(t, testutil.FixedClock(), 15*time.Minute, 1024)

		code, _, err := s.Create(ctx, []byte("blob"), 0)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		_, err = s.Retrieve(ctx, code)
		if !errors.Is(err, relay.ErrTransferNotFound) {
			t.Errorf("Retrieve() error = %v, want ErrTransferNotFound", err)
		}
	})
}

func TestSessions_Retrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes the session", func(t *testing.T) {
		s := newSessions(t, testutil.FixedClock(), 15*time.Minute, 1024)

		code, _, err := s.Create(ctx, []byte("blob"), time.Minute)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got, err := s.Retrieve(ctx, code)
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		if string(got) != "blob" {
			t.Errorf("Retrieve() = %q", got)
		}
		if _, err := s.Retrieve(ctx, code); !errors.Is(err, relay.ErrTransferNotFound) {
			t.Errorf("second Retrieve() error = %v, want ErrTransferNotFound", err)
		}
	})

	t.Run("expired session", func(t *testing.T) {
		clock := testutil.FixedClock()
		s := newSessions(t, clock, 15*time.Minute, 1024)

		code, _, err := s.Create(ctx, []byte("blob"), time.Minute)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		clock.Advance(2 * time.Minute)

		_, err = s.Retrieve(ctx, code)
		if !errors.Is(err, relay.ErrTransferNotFound) {
			t.Errorf("Retrieve() error = %v, want ErrTransferNotFound", err)
		}
	})
}
