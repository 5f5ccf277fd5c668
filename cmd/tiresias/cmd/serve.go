package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/tiresias/internal/config"
	"github.com/MeKo-Tech/tiresias/internal/objdet"
	"github.com/MeKo-Tech/tiresias/internal/server"
	"github.com/MeKo-Tech/tiresias/internal/store"
	"github.com/MeKo-Tech/tiresias/internal/version"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server for gallery localisation",
		Long: `Start an HTTP server exposing localisation and object detection.

The server provides the following endpoints:
  GET  /health             - Health check
  GET  /galleries          - Gallery ids and neighbours
  GET  /galleries/geojson  - Galleries as GeoJSON
  POST /locate             - Locate an uploaded photo (JSON or ?format=png)
  POST /detect             - Run a detection model on an uploaded photo
  GET  /ws/locate          - Locate photos streamed over a WebSocket
  GET  /metrics            - Prometheus metrics

Examples:
  tiresias serve --shapefile galeries.shp
  tiresias serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			return a.runServe(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int("max-upload-size", 20, "maximum upload size in MB")
	f.Int("timeout", 60, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Bool("rate-limit-enabled", false, "enable rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Bool("store", false, "save every localisation in the MySQL store")
	return cmd
}

// applyServeFlags overrides the server section with the flags set on the command line.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Server.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("rate-limit-enabled") {
		cfg.Server.RateLimitEnabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		cfg.Server.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		cfg.Server.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("store") {
		cfg.Store.Enabled, _ = f.GetBool("store")
	}
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		CORSOrigin:        cfg.Server.CORSOrigin,
		MaxUploadMB:       int64(cfg.Server.MaxUploadMB),
		TimeoutSec:        cfg.Server.TimeoutSec,
		Column:            cfg.Gallery.ColumnID,
		Version:           version.Version,
		RateLimitEnabled:  cfg.Server.RateLimitEnabled,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		RequestsPerHour:   cfg.Server.RequestsPerHour,
	}
}

func (a *app) runServe(ctx context.Context, cfg *config.Config) error {
	loc, err := a.openLocator(cfg, locatorOptions{
		figures:   true,
		neighbors: cfg.Display.Neighbors,
		workers:   cfg.Input.Workers,
	})
	if err != nil {
		return err
	}

	opts := []server.Option{}
	if specs := cfg.DetectionModels(); len(specs) > 0 {
		dcfg, err := cfg.DetectorConfig()
		if err != nil {
			_ = loc.Close()
			return err
		}
		dets, err := objdet.LoadAll(specs, dcfg)
		if err != nil {
			_ = loc.Close()
			return err
		}
		opts = append(opts, server.WithDetectors(dets...))
	}
	if cfg.Store.Enabled {
		st, err := store.Open(ctx, cfg.Store.DSN)
		if err != nil {
			_ = loc.Close()
			return err
		}
		defer func() { _ = st.Close() }()
		st.KeepFigures = cfg.Store.KeepFigures
		if err := st.Migrate(ctx); err != nil {
			_ = loc.Close()
			return err
		}
		opts = append(opts, server.WithStore(st))
	}

	sc := serverConfig(cfg)
	srv, err := server.NewServer(sc, loc, opts...)
	if err != nil {
		_ = loc.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              sc.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting tiresias server", "addr", sc.Addr(), "galleries", loc.Catalogue().Len())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			slog.Error("Server error", "error", serveErr)
		}
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return serveErr
}
