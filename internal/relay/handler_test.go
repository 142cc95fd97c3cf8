package relay_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
	"github.com/neutron-sync/neutron-sync/internal/relay"
	"github.com/neutron-sync/neutron-sync/internal/testutil"
)

func newTestServer(t *testing.T, clock *testutil.StubClock, maxTTL time.Duration, maxSize int64) *httptest.Server {
	t.Helper()

	store := relay.NewMemoryStore(clock)
	t.Cleanup(func() { store.Close() })

	logger := nsync.NewNopLogger()
	sessions := relay.NewSessions(store, clock, testutil.NewStubCodeGenerator(), logger, maxTTL, maxSize)

	mux := http.NewServeMux()
	relay.NewHandler(sessions, logger, maxSize).RegisterRoutes(mux)

	srv := httptest.NewServer(relay.RequestID(relay.AccessLog(logger, mux)))
	t.Cleanup(srv.Close)
	return srv
}

func submit(t *testing.T, srv *httptest.Server, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := srv.Client().Post(srv.URL+url, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_SubmitRetrieve(t *testing.T) {
	t.Run("submit then retrieve exactly once", func(t *testing.T) {
		srv := newTestServer(t, testutil.FixedClock(), 15*time.Minute, 1024)

		resp := submit(t, srv, "/transfer?ttl=300", []byte("ciphertext"))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("submit status = %d", resp.StatusCode)
		}
		var sub struct {
			Code      string    `json:"code"`
			ExpiresAt time.Time `json:"expires_at"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
			t.Fatalf("decoding submit response: %v", err)
		}
		if sub.Code != "code-1" {
			t.Errorf("code = %q, want code-1", sub.Code)
		}
		if sub.ExpiresAt.IsZero() {
			t.Error("expires_at missing from submit response")
		}

		get, err := srv.Client().Get(srv.URL + "/transfer/" + sub.Code)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer get.Body.Close()
		if get.StatusCode != http.StatusOK {
			t.Fatalf("retrieve status = %d", get.StatusCode)
		}
		if ct := get.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, err := io.ReadAll(get.Body)
		if err != nil {
			t.Fatalf("reading retrieve body: %v", err)
		}
		if string(body) != "ciphertext" {
			t.Errorf("body = %q", body)
		}

		again, err := srv.Client().Get(srv.URL + "/transfer/" + sub.Code)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer again.Body.Close()
		if again.StatusCode != http.StatusNotFound {
			t.Errorf("second retrieve status = %d, want 404", again.StatusCode)
		}
	})

	t.Run("unknown code is a json 404", func(t *testing.T) {
		srv := newTestServer(t, testutil.FixedClock(), 15*time.Minute, 1024)

		resp, err := srv.Client().Get(srv.URL + "/transfer/never-stored-0000")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
		var e struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			t.Fatalf("decoding error response: %v", err)
		}
		if e.Status != "not found or expired" {
			t.Errorf("status field = %q", e.Status)
		}
	})

	t.Run("expired code is a 404", func(t *testing.T) {
		clock := testutil.FixedClock()
		srv := newTestServer(t, clock, 15*time.Minute, 1024)

		resp := submit(t, srv, "/transfer?ttl=60", []byte("ciphertext"))
		var sub struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
			t.Fatalf("decoding submit response: %v", err)
		}
		clock.Advance(2 * time.Minute)

		get, err := srv.Client().Get(srv.URL + "/transfer/" + sub.Code)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer get.Body.Close()
		if get.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", get.StatusCode)
		}
	})

	t.Run("invalid ttl is a 400", func(t *testing.T) {
		srv := newTestServer(t, testutil.FixedClock(), 15*time.Minute, 1024)

		for _, ttl := range []string{"abc", "-5", "1.5"} {
			resp := submit(t, srv, "/transfer?ttl="+ttl, []byte("x"))
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("ttl=%s: status = %d, want 400", ttl, resp.StatusCode)
			}
		}
	})

	t.Run("empty body is a 400", func(t *testing.T) {
		srv := newTestServer(t, testutil.FixedClock(), 15*time.Minute, 1024)

		resp := submit(t, srv, "/transfer", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("oversized body is a 413", func(t *testing.T) {
		srv := newTestServer(t, testutil.FixedClock(), 15*time.Minute, 8)

		resp := submit(t, srv, "/transfer", bytes.Repeat([]byte("x"), 64))
		if resp.StatusCode != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", resp.StatusCode)
		}
	})

	t.Run("request id is echoed and generated", func(t *testing.T) {
		srv := newTestServer(t, testutil.FixedClock(), 15*time.Minute, 1024)

		req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
		if err != nil {
			t.Fatalf("NewRequest() error = %v", err)
		}
		req.Header.Set("X-Request-ID", "caller-supplied")
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		defer resp.Body.Close()
		if got := resp.Header.Get("X-Request-ID"); got != "caller-supplied" {
			t.Errorf("X-Request-ID = %q, want caller-supplied", got)
		}

		anon, err := srv.Client().Get(srv.URL + "/health")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer anon.Body.Close()
		if anon.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID missing when caller sent none")
		}
	})
}
