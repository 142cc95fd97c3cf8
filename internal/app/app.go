package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/neutron-sync/neutron-sync/internal/config"
	"github.com/neutron-sync/neutron-sync/internal/encryption"
	"github.com/neutron-sync/neutron-sync/internal/manifest"
	"github.com/neutron-sync/neutron-sync/internal/nsync"
	"github.com/neutron-sync/neutron-sync/internal/transfer"
	"github.com/neutron-sync/neutron-sync/internal/vcs"
)

// App is the application layer between the CLI and the registry/transfer
// services. It constructs all dependencies from config and manages the log
// file lifecycle on Close.
type App struct {
	cfg      *config.Config
	registry *nsync.Registry
	cipher   *encryption.AgeCipher
	logger   nsync.Logger
	logFile  *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Link", "Pull"). The caller
// must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	if cfg.RepoDir == "" {
		return nil, fmt.Errorf("no repository configured; run `nsync init <repo>`")
	}
	if _, err := os.Stat(cfg.RepoDir); err != nil {
		return nil, fmt.Errorf("repository %s: %w", cfg.RepoDir, err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	cipher := encryption.NewAgeCipher(cfg.IdentityPath)

	var secrets nsync.SecretCipher
	if cipher.IsConfigured() {
		secrets = cipher
	}

	registry := nsync.NewRegistry(
		cfg.RepoDir,
		manifest.NewTOMLStore(cfg.RepoDir),
		vcs.NewGit(cfg.RepoDir),
		nsync.NewTranslator(cfg.Translations),
		secrets,
		&slogAdapter{l: logger},
		nsync.RealClock{},
	)

	return &App{
		cfg:      cfg,
		registry: registry,
		cipher:   cipher,
		logger:   &slogAdapter{l: logger},
		logFile:  logFile,
	}, nil
}

// Link tracks the given paths. When secret is true, repository copies are
// encrypted to the machine identity.
func (a *App) Link(paths []string, secret bool) ([]nsync.LinkEntry, error) {
	entries := make([]nsync.LinkEntry, 0, len(paths))
	for _, p := range paths {
		entry, err := a.registry.Link(p, secret)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Unlink stops tracking a path and restores its content in place.
func (a *App) Unlink(path string) error {
	return a.registry.Unlink(path)
}

// Save commits and pushes all repository changes.
func (a *App) Save() error {
	return a.registry.Save()
}

// Pull fetches remote changes and reconciles the local filesystem.
func (a *App) Pull() (*nsync.ReconcileReport, error) {
	return a.registry.Pull()
}

// Entries lists all tracked entries.
func (a *App) Entries() ([]nsync.LinkEntry, error) {
	return a.registry.Entries()
}

// IdentityInit generates the machine identity used for secret entries.
func (a *App) IdentityInit() (string, error) {
	if err := a.cipher.Setup(); err != nil {
		return "", err
	}
	return a.cipher.Path(), nil
}

// IdentityPath returns the identity file location, or an error if no
// identity has been generated yet.
func (a *App) IdentityPath() (string, error) {
	if !a.cipher.IsConfigured() {
		return "", fmt.Errorf("no machine identity at %s; run `nsync identity init`", a.cipher.Path())
	}
	return a.cipher.Path(), nil
}

// Send seals the given files and submits them to the configured relay,
// returning the one-time code and expiry.
func (a *App) Send(ctx context.Context, paths []string, passphrase string, ttl time.Duration) (string, time.Time, error) {
	client, err := a.transferClient()
	if err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		ttl = a.cfg.Transfer.DefaultTTL.Duration
	}
	code, expiresAt, err := transfer.Send(ctx, client, paths, passphrase, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	a.logger.Info("transfer submitted", "code", code, "files", len(paths))
	return code, expiresAt, nil
}

// Receive retrieves and decrypts a transfer, writing the files under
// ntransfer-<code>/ in the current directory. Returns the written paths.
func (a *App) Receive(ctx context.Context, code, passphrase string) ([]string, error) {
	client, err := a.transferClient()
	if err != nil {
		return nil, err
	}
	written, err := transfer.Receive(ctx, client, code, passphrase, "ntransfer-"+code)
	if err != nil {
		return nil, err
	}
	a.logger.Info("transfer received", "code", code, "files", len(written))
	return written, nil
}

func (a *App) transferClient() (*transfer.Client, error) {
	if a.cfg.Transfer.ServerURL == "" {
		return nil, fmt.Errorf("no transfer server configured; set transfer.server_url in the config")
	}
	return transfer.NewClient(a.cfg.Transfer.ServerURL), nil
}

// Close releases the log file.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}
