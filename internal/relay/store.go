// Package relay implements the ephemeral transfer relay: a short-lived,
// single-use drop box for encrypted bootstrap bundles. The relay only ever
// holds ciphertext; possession of the code is the sole access control, with
// entropy and a short TTL as the security boundary.
package relay

import (
	"context"
	"errors"
	"time"
)

// ErrTransferNotFound indicates the code never existed, already expired, or
// was already retrieved. Callers cannot distinguish the three; that is the
// point.
var ErrTransferNotFound = errors.New("transfer not found")

// ErrTransferTooLarge indicates the submitted blob exceeds the service's
// size cap.
var ErrTransferTooLarge = errors.New("transfer too large")

// Store is the key-value-with-TTL contract the transfer session depends on.
//
// GetAndDelete must be atomic in the backing store itself: under concurrent
// retrieval attempts for the same code, exactly one caller succeeds and all
// others observe ErrTransferNotFound. Expiry is passive - entries past their
// TTL become unreadable without an explicit delete. A clustered deployment
// of the service must point every instance at one shared store; per-process
// locking does not satisfy the contract across instances.
type Store interface {
	// Put stores a blob under code with an absolute expiry of now+ttl.
	// A ttl <= 0 stores an entry that is already expired.
	Put(ctx context.Context, code string, blob []byte, ttl time.Duration) error

	// GetAndDelete atomically fetches and deletes the blob for code.
	// Returns ErrTransferNotFound for absent, expired, or consumed codes.
	GetAndDelete(ctx context.Context, code string) ([]byte, error)

	// Close releases backing resources.
	Close() error
}
