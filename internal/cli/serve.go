package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/api"
	"github.com/tidemark/sealpost/internal/config"
	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
	Database   string
	Listen     string

	// IDGenerator allows overriding the operation ID generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	IDGenerator engine.OpIDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine and HTTP API",
		Long: `Start the sealpost engine and HTTP API server.

The engine opens the SQLite database (creating it if it doesn't exist),
starts the single-writer operation loop, and serves the JSON API until
interrupted.

Example:
  sealpost serve --config ./sealpost.cue
  sealpost serve --db /tmp/test.db --listen 127.0.0.1:9000 --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to CUE configuration file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "HTTP listen address (overrides config)")

	return cmd
}

func runServer(opts *ServeOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	cfg, err := loadServeConfig(opts)
	if err != nil {
		return err
	}

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database ready")

	ids := opts.IDGenerator
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}

	hub := api.NewTailHub()
	eng := engine.New(st, ids,
		engine.WithMutationQuota(cfg.MutationQuota),
		engine.WithMaxPayloadBytes(cfg.MaxPayloadBytes),
		engine.WithAppendHook(hub.Notify),
	)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.NewServer(eng, hub).Routes(),
	}

	httpErr := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown", "error", err)
		}
	}()

	slog.Info("engine starting", "db", cfg.Database, "listen", cfg.Listen)
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Serving API at", cfg.Listen)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	runDone := make(chan error, 1)
	go func() {
		runDone <- eng.Run(ctx)
	}()

	select {
	case err := <-httpErr:
		cancel()
		<-runDone
		return WrapExitError(ExitFailure, "http server error", err)
	case err := <-runDone:
		if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
			return WrapExitError(ExitFailure, "engine error", err)
		}
	}

	slog.Info("engine stopped gracefully")
	return nil
}

// loadServeConfig resolves configuration from file and flag overrides.
func loadServeConfig(opts *ServeOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	return cfg, nil
}
