// Package transfer is the client side of the one-time relay protocol.
// Plaintext never leaves this machine: files are bundled and sealed locally,
// only ciphertext goes over the wire, and the passphrase travels between
// machines out of the relay's band.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound indicates the relay has no session for the code: it never
// existed, expired, or was already retrieved.
var ErrNotFound = errors.New("transfer not found")

// Client talks to a relay service.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a Client for the relay at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// submitResponse mirrors the relay's Submit JSON body.
type submitResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Submit uploads a sealed blob and returns the one-time code and the
// session's absolute expiry.
func (c *Client) Submit(ctx context.Context, blob []byte, ttl time.Duration) (string, time.Time, error) {
	u, err := url.Parse(c.baseURL + "/transfer")
	if err != nil {
		return "", time.Time{}, fmt.Errorf("bad relay URL: %w", err)
	}
	q := u.Query()
	q.Set("ttl", strconv.FormatInt(int64(ttl/time.Second), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(blob))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("submitting transfer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("relay error: %s: %s", resp.Status, readError(resp.Body))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", time.Time{}, fmt.Errorf("decoding relay response: %w", err)
	}
	return sr.Code, sr.ExpiresAt, nil
}

// Retrieve fetches the sealed blob for code. On success the relay has
// already deleted its copy; a second call returns ErrNotFound.
func (c *Client) Retrieve(ctx context.Context, code string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transfer/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieving transfer: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		blob, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading transfer %s: %w", code, err)
		}
		return blob, nil
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("%s: %w", code, ErrNotFound)
	default:
		return nil, fmt.Errorf("relay error: %s: %s", resp.Status, readError(resp.Body))
	}
}

// readError pulls the status field out of an error body, if there is one.
func readError(r io.Reader) string {
	var er struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r).Decode(&er); err != nil || er.Status == "" {
		return "no detail"
	}
	return er.Status
}
