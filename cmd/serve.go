package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/AndreyRyab/mama-talk/internal/config"
	"github.com/AndreyRyab/mama-talk/internal/logging"
	"github.com/AndreyRyab/mama-talk/internal/server"
	"github.com/AndreyRyab/mama-talk/internal/signaling"
	"github.com/AndreyRyab/mama-talk/internal/version"
)

var serveOpts config.ServerOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the signaling relay: websocket signaling on /ws, a JSON health
report on /health and, in production, the built web client.

Examples:
  mama-talk serve
  PORT=8080 NODE_ENV=production mama-talk serve --static-dir ./dist
  mama-talk serve --config mama-talk.toml --origin https://talk.example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), serveOpts)
	},
}

func runServer(ctx context.Context, opts config.ServerOptions) error {
	cfg, err := config.LoadServer(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, level, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = logger.With("service", "mama-talk", "version", version.Version)

	hub := signaling.NewHub(logger)
	srv := server.New(cfg, hub, logger)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped", "rooms", hub.Stats().Rooms)
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.ConfigFile, "config", "c", "", "TOML config file")
	f.StringVarP(&serveOpts.ListenAddr, "listen", "l", "", "Listen address (default :3000, or :$PORT)")
	f.StringVarP(&serveOpts.Environment, "env", "e", "", "Environment: development or production")
	f.StringSliceVar(&serveOpts.AllowedOrigins, "origin", nil, "Allowed browser origin (repeatable, * allows any)")
	f.StringVar(&serveOpts.StaticDir, "static-dir", "", "Built web client served in production (default dist)")
	f.StringVar(&serveOpts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&serveOpts.LogFormat, "log-format", "", "Log format: text or json")
}
