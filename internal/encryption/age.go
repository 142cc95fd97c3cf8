// Package encryption manages the machine identity used for secret-kind
// entries: an age X25519 key pair stored in a single identity file. The
// repository copy of a secret entry is encrypted to this identity, and the
// identity file itself travels in the bootstrap transfer bundle so a new
// machine can decrypt after `nsync receive`.
package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// AgeCipher implements nsync.SecretCipher with an age X25519 identity kept
// in a 0600 file.
type AgeCipher struct {
	identityPath string
}

var _ nsync.SecretCipher = (*AgeCipher)(nil)

// NewAgeCipher creates an AgeCipher backed by the identity file at path.
func NewAgeCipher(path string) *AgeCipher {
	return &AgeCipher{identityPath: path}
}

// Setup generates a fresh X25519 identity and writes the identity file.
// It refuses to overwrite an existing identity.
func (c *AgeCipher) Setup() error {
	if _, err := os.Stat(c.identityPath); err == nil {
		return fmt.Errorf("identity already exists at %s", c.identityPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.identityPath), 0700); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# created: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "# public key: %s\n", identity.Recipient().String())
	fmt.Fprintf(&buf, "%s\n", identity.String())

	if err := os.WriteFile(c.identityPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing identity file: %w", err)
	}
	return nil
}

// IsConfigured returns true if the identity file exists.
func (c *AgeCipher) IsConfigured() bool {
	_, err := os.Stat(c.identityPath)
	return err == nil
}

// Path returns the identity file location.
func (c *AgeCipher) Path() string { return c.identityPath }

// Encrypt reads plaintext from r and writes age ciphertext to w, encrypted
// to this machine's recipient.
func (c *AgeCipher) Encrypt(r io.Reader, w io.Writer) error {
	identity, err := c.load()
	if err != nil {
		return err
	}

	encWriter, err := age.Encrypt(w, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Decrypt reads age ciphertext from r and writes plaintext to w.
func (c *AgeCipher) Decrypt(r io.Reader, w io.Writer) error {
	identity, err := c.load()
	if err != nil {
		return err
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("reading decrypted data: %w", err)
	}
	return nil
}

// load parses the identity file.
func (c *AgeCipher) load() (*age.X25519Identity, error) {
	data, err := os.ReadFile(c.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity found in %s", c.identityPath)
}
