package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// Handler exposes the transfer session operations over HTTP:
//
//	POST /transfer?ttl=<seconds>  body = ciphertext  -> {"code": ..., "expires_at": ...}
//	GET  /transfer/{code}         -> ciphertext bytes, or 404 once consumed or expired
//
// No authentication beyond possession of the code: its entropy and the short
// TTL are the security boundary.
type Handler struct {
	sessions *Sessions
	logger   nsync.Logger
	maxSize  int64
}

// NewHandler creates a Handler over the given session service.
func NewHandler(sessions *Sessions, logger nsync.Logger, maxSize int64) *Handler {
	return &Handler{sessions: sessions, logger: logger, maxSize: maxSize}
}

// RegisterRoutes attaches the relay endpoints to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("POST /transfer", h.HandleSubmit)
	mux.HandleFunc("GET /transfer/{code}", h.HandleRetrieve)
}

// submitResponse is the Submit endpoint's JSON body.
type submitResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type errorResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, errorResponse{Status: "ok"})
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ttl, ok := h.parseTTL(w, r)
	if !ok {
		return
	}

	// +1 so an oversized body trips the session's size check instead of a
	// silent truncation.
	body := http.MaxBytesReader(w, r.Body, h.maxSize+1)
	blob, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Status: "too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "bad request"})
		return
	}
	if len(blob) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "empty body"})
		return
	}

	code, expiresAt, err := h.sessions.Create(r.Context(), blob, ttl)
	if err != nil {
		if errors.Is(err, ErrTransferTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Status: "too large"})
			return
		}
		h.logger.Error("submit failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{Code: code, ExpiresAt: expiresAt})
}

func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "code required"})
		return
	}

	blob, err := h.sessions.Retrieve(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrTransferNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Status: "not found or expired"})
			return
		}
		h.logger.Error("retrieve failed", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "internal error"})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

// parseTTL reads the ttl query parameter in whole seconds. Absent means "use
// the server maximum"; zero is accepted and yields an already-expired
// session.
func (h *Handler) parseTTL(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		return h.sessions.maxTTL, true
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "invalid ttl"})
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
