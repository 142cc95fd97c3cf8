package nsync

import (
	"io"
	"time"
)

// Clock abstracts time retrieval so expiry logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// CodeGenerator produces human-readable transfer codes. Codes are assumed to
// draw from a word list large enough that collisions within a TTL window are
// negligible.
type CodeGenerator interface {
	New() (string, error)
}

// SecretCipher encrypts repository copies of secret-kind entries to the
// machine identity and decrypts them on pull.
type SecretCipher interface {
	Encrypt(r io.Reader, w io.Writer) error
	Decrypt(r io.Reader, w io.Writer) error
}
