package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for nsync.
type Config struct {
	RepoDir      string            `toml:"repo_dir"`
	LogDir       string            `toml:"log_dir"`
	IdentityPath string            `toml:"identity_path"`
	Translations map[string]string `toml:"translations"`
	Transfer     TransferConfig    `toml:"transfer"`
	Relay        RelayConfig       `toml:"relay"`
}

// TransferConfig holds client-side settings for the one-time transfer relay.
type TransferConfig struct {
	ServerURL  string   `toml:"server_url"`
	DefaultTTL Duration `toml:"default_ttl"`
}

// RelayConfig holds server-side settings for nsync-relay.
type RelayConfig struct {
	Listen      string      `toml:"listen"`
	MaxTTL      Duration    `toml:"max_ttl"`
	MaxBlobSize int64       `toml:"max_blob_size"` // bytes
	Store       StoreConfig `toml:"store"`
}

// StoreConfig represents configuration for the relay store backend.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type StoreConfig struct {
	Type    string `toml:"type"`               // "memory" or "sqlite"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// Defaults matching the original layout: repository under the user's control,
// identity alongside the rest of nsync's state, home and root translations.
const (
	DefaultMaxTTL      = 15 * time.Minute
	DefaultMaxBlobSize = 8 << 20 // 8 MiB
)

// NewConfig creates a Config with default values for the given repository
// and base directory.
func NewConfig(repoDir, baseDir, homeDir string) *Config {
	return &Config{
		RepoDir:      repoDir,
		LogDir:       filepath.Join(baseDir, "log"),
		IdentityPath: filepath.Join(baseDir, "identity.key"),
		Translations: map[string]string{
			"_home": homeDir,
			"_root": "/",
		},
		Transfer: TransferConfig{
			DefaultTTL: Duration{10 * time.Minute},
		},
		Relay: RelayConfig{
			Listen:      ":8745",
			MaxTTL:      Duration{DefaultMaxTTL},
			MaxBlobSize: DefaultMaxBlobSize,
			Store:       StoreConfig{Type: "memory"},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided
// Config. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
