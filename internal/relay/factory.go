package relay

import (
	"fmt"

	"github.com/neutron-sync/neutron-sync/internal/config"
	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// NewStoreFromConfig creates a Store based on the configuration type.
func NewStoreFromConfig(cfg config.StoreConfig, clock nsync.Clock) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(clock), nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite store requires data_dir")
		}
		return NewSQLiteStore(cfg.DataDir, clock)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}
