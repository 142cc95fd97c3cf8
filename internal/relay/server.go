package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/neutron-sync/neutron-sync/internal/config"
	"github.com/neutron-sync/neutron-sync/internal/nsync"
	"github.com/neutron-sync/neutron-sync/internal/phrase"
)

// Server wires the store, session service, and HTTP front end together.
type Server struct {
	httpServer *http.Server
	store      Store
}

// NewServer builds a Server from configuration. The caller must call
// Shutdown when done.
func NewServer(cfg config.RelayConfig, logger nsync.Logger) (*Server, error) {
	maxTTL := cfg.MaxTTL.Duration
	if maxTTL <= 0 {
		maxTTL = config.DefaultMaxTTL
	}
	maxSize := cfg.MaxBlobSize
	if maxSize <= 0 {
		maxSize = config.DefaultMaxBlobSize
	}

	store, err := NewStoreFromConfig(cfg.Store, nsync.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	sessions := NewSessions(store, nsync.RealClock{}, phrase.NewGenerator(), logger, maxTTL, maxSize)
	handler := NewHandler(sessions, logger, maxSize)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Listen,
			Handler:           RequestID(AccessLog(logger, mux)),
			ReadHeaderTimeout: 10 * time.Second,
		},
		store: store,
	}, nil
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.store.Close(); err == nil {
		err = closeErr
	}
	return err
}
