package encryption_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neutron-sync/neutron-sync/internal/encryption"
	"github.com/neutron-sync/neutron-sync/internal/testutil"
)

func TestAgeCipher(t *testing.T) {
	t.Run("setup creates a 0600 identity file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keys", "identity.key")
		c := encryption.NewAgeCipher(path)

		if c.IsConfigured() {
			t.Fatal("IsConfigured() = true before Setup")
		}
		if err := c.Setup(); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !c.IsConfigured() {
			t.Fatal("IsConfigured() = false after Setup")
		}
		if got := testutil.Mode(t, path); got != 0600 {
			t.Errorf("identity mode = %04o, want 0600", got)
		}
		if !strings.Contains(string(testutil.ReadFile(t, path)), "AGE-SECRET-KEY-") {
			t.Error("identity file does not contain a secret key")
		}
	})

	t.Run("setup refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "identity.key")
		c := encryption.NewAgeCipher(path)
		if err := c.Setup(); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		before := testutil.ReadFile(t, path)

		if err := c.Setup(); err == nil {
			t.Fatal("second Setup() error = nil, want refusal")
		}
		if !bytes.Equal(before, testutil.ReadFile(t, path)) {
			t.Error("identity file changed")
		}
	})

	t.Run("encrypt and decrypt round trip", func(t *testing.T) {
		c := encryption.NewAgeCipher(filepath.Join(t.TempDir(), "identity.key"))
		if err := c.Setup(); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}

		plaintext := []byte("machine secret\n")
		var ciphertext bytes.Buffer
		if err := c.Encrypt(bytes.NewReader(plaintext), &ciphertext); err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if bytes.Contains(ciphertext.Bytes(), plaintext) {
			t.Error("ciphertext contains plaintext")
		}

		var got bytes.Buffer
		if err := c.Decrypt(bytes.NewReader(ciphertext.Bytes()), &got); err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(got.Bytes(), plaintext) {
			t.Errorf("Decrypt() = %q, want %q", got.Bytes(), plaintext)
		}
	})

	t.Run("another identity cannot decrypt", func(t *testing.T) {
		a := encryption.NewAgeCipher(filepath.Join(t.TempDir(), "a.key"))
		b := encryption.NewAgeCipher(filepath.Join(t.TempDir(), "b.key"))
		for _, c := range []*encryption.AgeCipher{a, b} {
			if err := c.Setup(); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}
		}

		var ciphertext bytes.Buffer
		if err := a.Encrypt(strings.NewReader("secret"), &ciphertext); err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		var out bytes.Buffer
		if err := b.Decrypt(bytes.NewReader(ciphertext.Bytes()), &out); err == nil {
			t.Fatal("Decrypt() with the wrong identity error = nil, want failure")
		}
	})

	t.Run("missing identity", func(t *testing.T) {
		c := encryption.NewAgeCipher(filepath.Join(t.TempDir(), "absent.key"))
		var out bytes.Buffer
		if err := c.Encrypt(strings.NewReader("x"), &out); err == nil {
			t.Fatal("Encrypt() without identity error = nil, want failure")
		}
	})
}
