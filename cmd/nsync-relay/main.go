package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neutron-sync/neutron-sync/internal/app"
	"github.com/neutron-sync/neutron-sync/internal/config"
	"github.com/neutron-sync/neutron-sync/internal/relay"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nsync-relay",
	Short: "Ephemeral relay for one-time encrypted transfers",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay service",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			defaults, err := app.GetDefaults()
			if err != nil {
				return fmt.Errorf("getting defaults: %w", err)
			}
			path = defaults["config_path"]
		}

		cfg, err := config.ReadFromFile(path)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		logger := app.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stdout, nil)))

		server, err := relay.NewServer(cfg.Relay, logger)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()
		logger.Info("relay listening", "addr", cfg.Relay.Listen, "store", cfg.Relay.Store.Type)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default: ~/.config/nsync.toml)")
	rootCmd.AddCommand(serveCmd)
}
