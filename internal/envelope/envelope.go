// Package envelope implements the authenticated symmetric encryption used
// for one-time transfer bundles. A sealed blob is self-contained: it embeds
// the key-derivation salt and the nonce, but never the key. The key is
// derived from a passphrase the user carries between machines out of band,
// so the relay never sees anything it could decrypt.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	// PBKDF2-SHA256 iteration count. High on purpose: transfer passphrases
	// are human-chosen and the ciphertext sits on a third party's disk.
	iterations = 480000
)

// ErrAuthenticationFailure indicates the blob was tampered with or the
// passphrase is wrong. No partial plaintext is ever returned.
var ErrAuthenticationFailure = errors.New("authentication failure")

// Seal encrypts plaintext under a key derived from passphrase. The salt and
// nonce are generated internally from a cryptographically secure source on
// every call, so nonce reuse cannot happen.
//
// Blob layout: salt (16) || nonce (24) || secretbox ciphertext.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	key := deriveKey(passphrase, salt[:])

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plaintext, &nonce, &key)
	return out, nil
}

// Open decrypts a sealed blob with the key derived from passphrase. It
// returns ErrAuthenticationFailure if the authentication tag does not
// verify, whether from tampering or a wrong passphrase.
func Open(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < saltSize+nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("blob too short: %w", ErrAuthenticationFailure)
	}

	var salt [saltSize]byte
	copy(salt[:], blob[:saltSize])
	var nonce [nonceSize]byte
	copy(nonce[:], blob[saltSize:saltSize+nonceSize])

	key := deriveKey(passphrase, salt[:])

	plaintext, ok := secretbox.Open(nil, blob[saltSize+nonceSize:], &nonce, &key)
	if !ok {
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte) [keySize]byte {
	var key [keySize]byte
	derived := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	copy(key[:], derived)
	return key
}
