package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/neutron-sync/neutron-sync/internal/envelope"
)

// Send bundles the given files, seals the bundle under passphrase, and
// submits the ciphertext to the relay. It returns the one-time code and the
// session's absolute expiry.
func Send(ctx context.Context, client *Client, paths []string, passphrase string, ttl time.Duration) (string, time.Time, error) {
	files, err := envelope.ReadFiles(paths)
	if err != nil {
		return "", time.Time{}, err
	}
	bundle, err := envelope.Pack(files)
	if err != nil {
		return "", time.Time{}, err
	}
	blob, err := envelope.Seal(bundle, passphrase)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sealing bundle: %w", err)
	}
	return client.Submit(ctx, blob, ttl)
}

// Receive retrieves the session for code, opens it with passphrase, and
// writes the recovered files under destDir with their recorded permission
// bits. It returns the written paths.
//
// Decryption happens only here, on the receiving machine; a wrong
// passphrase surfaces as envelope.ErrAuthenticationFailure after the
// session has already been consumed, so the sender must submit again.
func Receive(ctx context.Context, client *Client, code, passphrase, destDir string) ([]string, error) {
	blob, err := client.Retrieve(ctx, code)
	if err != nil {
		return nil, err
	}
	bundle, err := envelope.Open(blob, passphrase)
	if err != nil {
		return nil, err
	}
	files, err := envelope.Unpack(bundle)
	if err != nil {
		return nil, err
	}
	return envelope.WriteFiles(destDir, files)
}
