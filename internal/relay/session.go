package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// Sessions models the lifecycle of one-time transfer sessions on top of the
// Store. A session is pending from Create until it is retrieved or its
// absolute expiry passes; both are terminal. Expiry is a predicate over
// created_at+ttl, not stored state, and the Store's atomic get-and-delete is
// the sole cross-request synchronization point.
type Sessions struct {
	store   Store
	clock   nsync.Clock
	codes   nsync.CodeGenerator
	logger  nsync.Logger
	maxTTL  time.Duration
	maxSize int64
}

// NewSessions creates a Sessions service. Requested TTLs are capped at
// maxTTL, blob sizes at maxSize bytes.
func NewSessions(store Store, clock nsync.Clock, codes nsync.CodeGenerator, logger nsync.Logger, maxTTL time.Duration, maxSize int64) *Sessions {
	return &Sessions{
		store:   store,
		clock:   clock,
		codes:   codes,
		logger:  logger,
		maxTTL:  maxTTL,
		maxSize: maxSize,
	}
}

// Create stores a sealed blob under a freshly generated code and returns the
// code with the session's absolute expiry. TTLs above the cap are clamped;
// a ttl of zero is accepted and produces a session that is already expired,
// never retrievable.
func (s *Sessions) Create(ctx context.Context, blob []byte, ttl time.Duration) (string, time.Time, error) {
	if int64(len(blob)) > s.maxSize {
		return "", time.Time{}, fmt.Errorf("%d bytes exceeds the %d byte limit: %w", len(blob), s.maxSize, ErrTransferTooLarge)
	}
	if ttl < 0 {
		ttl = 0
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	code, err := s.codes.New()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating code: %w", err)
	}

	expiresAt := s.clock.Now().Add(ttl)
	if err := s.store.Put(ctx, code, blob, ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("storing session: %w", err)
	}

	s.logger.Info("session created", "code", code, "size", len(blob), "ttl", ttl.String())
	return code, expiresAt, nil
}

// Retrieve consumes the session for code: the ciphertext is returned and no
// server-side copy remains. At most one caller ever succeeds for a given
// code; everyone else gets ErrTransferNotFound, which is expected
// steady-state behavior under a retrieve race, not something to alarm on.
func (s *Sessions) Retrieve(ctx context.Context, code string) ([]byte, error) {
	blob, err := s.store.GetAndDelete(ctx, code)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session retrieved", "code", code, "size", len(blob))
	return blob, nil
}
