package envelope_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/neutron-sync/neutron-sync/internal/envelope"
	"github.com/neutron-sync/neutron-sync/internal/testutil"
)

func TestSealOpen(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		plaintext := []byte("ssh-rsa AAAA... user@machine\n")
		blob, err := envelope.Seal(plaintext, "correct horse")
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if bytes.Contains(blob, plaintext) {
			t.Error("blob contains plaintext")
		}

		got, err := envelope.Open(blob, "correct horse")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("Open() = %q, want %q", got, plaintext)
		}
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		blob, err := envelope.Seal([]byte("secret"), "right")
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		_, err = envelope.Open(blob, "wrong")
		if !errors.Is(err, envelope.ErrAuthenticationFailure) {
			t.Errorf("Open() error = %v, want ErrAuthenticationFailure", err)
		}
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		blob, err := envelope.Seal([]byte("secret"), "pass")
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		blob[len(blob)-1] ^= 0x01
		_, err = envelope.Open(blob, "pass")
		if !errors.Is(err, envelope.ErrAuthenticationFailure) {
			t.Errorf("Open() error = %v, want ErrAuthenticationFailure", err)
		}
	})

	t.Run("truncated blob", func(t *testing.T) {
		_, err := envelope.Open([]byte("short"), "pass")
		if !errors.Is(err, envelope.ErrAuthenticationFailure) {
			t.Errorf("Open() error = %v, want ErrAuthenticationFailure", err)
		}
	})

	t.Run("fresh salt and nonce every call", func(t *testing.T) {
		a, err := envelope.Seal([]byte("same input"), "same pass")
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		b, err := envelope.Seal([]byte("same input"), "same pass")
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if bytes.Equal(a, b) {
			t.Error("two seals of the same input produced identical blobs")
		}
	})
}

func TestBundle(t *testing.T) {
	t.Run("pack and unpack preserve paths, modes, content", func(t *testing.T) {
		in := []envelope.File{
			{Path: "id_rsa", Mode: 0600, Content: []byte("PRIVATE\n")},
			{Path: "id_rsa.pub", Mode: 0644, Content: []byte("PUBLIC\n")},
		}
		data, err := envelope.Pack(in)
		if err != nil {
			t.Fatalf("Pack() error = %v", err)
		}
		out, err := envelope.Unpack(data)
		if err != nil {
			t.Fatalf("Unpack() error = %v", err)
		}
		if len(out) != len(in) {
			t.Fatalf("Unpack() returned %d files, want %d", len(out), len(in))
		}
		for i := range in {
			if out[i].Path != in[i].Path || out[i].Mode != in[i].Mode || !bytes.Equal(out[i].Content, in[i].Content) {
				t.Errorf("file %d = %+v, want %+v", i, out[i], in[i])
			}
		}
	})

	t.Run("read and write files via the filesystem", func(t *testing.T) {
		srcDir := t.TempDir()
		src := filepath.Join(srcDir, "deploy.key")
		testutil.WriteFile(t, src, []byte("KEY\n"), 0600)

		files, err := envelope.ReadFiles([]string{src})
		if err != nil {
			t.Fatalf("ReadFiles() error = %v", err)
		}
		if len(files) != 1 || files[0].Path != "deploy.key" || files[0].Mode != 0600 {
			t.Fatalf("ReadFiles() = %+v", files)
		}

		destDir := filepath.Join(t.TempDir(), "out")
		written, err := envelope.WriteFiles(destDir, files)
		if err != nil {
			t.Fatalf("WriteFiles() error = %v", err)
		}
		if len(written) != 1 {
			t.Fatalf("WriteFiles() wrote %d files, want 1", len(written))
		}
		if got := testutil.ReadFile(t, written[0]); string(got) != "KEY\n" {
			t.Errorf("content = %q", got)
		}
		if got := testutil.Mode(t, written[0]); got != 0600 {
			t.Errorf("mode = %04o, want 0600", got)
		}
	})

	t.Run("refuses directories", func(t *testing.T) {
		if _, err := envelope.ReadFiles([]string{t.TempDir()}); err == nil {
			t.Fatal("ReadFiles() error = nil, want failure for directory")
		}
	})

	t.Run("strips directory components on write", func(t *testing.T) {
		destDir := t.TempDir()
		written, err := envelope.WriteFiles(destDir, []envelope.File{
			{Path: "../escape", Mode: 0644, Content: []byte("x")},
		})
		if err != nil {
			t.Fatalf("WriteFiles() error = %v", err)
		}
		want := filepath.Join(destDir, "escape")
		if len(written) != 1 || written[0] != want {
			t.Errorf("written = %v, want [%s]", written, want)
		}
	})
}
