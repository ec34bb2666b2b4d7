package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"camera-relay/internal/camera"
	"camera-relay/internal/platform/database"
	"camera-relay/internal/scheduler"
	"camera-relay/internal/stream"
	"camera-relay/internal/transcoder"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay HTTP server",
	Long: `Start the relay HTTP server.

The server provides:
- playlist, start, stop and status endpoints under /stream/{camera_id}
- a scheduled health sweep over active sessions
- Prometheus metrics at /metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("public-url", "http://localhost:8080", "Externally reachable base URL used in relay URIs")
	serveCmd.Flags().String("sweep-schedule", "@every 30s", "Cron schedule for the health sweep (empty disables it)")
	serveCmd.Flags().Bool("transcode", false, "Launch ffmpeg for started sessions")

	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("relay.public_base_url", serveCmd.Flags().Lookup("public-url"))
	mustBindPFlag("health.schedule", serveCmd.Flags().Lookup("sweep-schedule"))
	mustBindPFlag("transcoder.enabled", serveCmd.Flags().Lookup("transcode"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	log := appLogger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	store := camera.NewGormStore(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	probe, err := stream.NewProbe(cfg.Health.Probe, &http.Client{Timeout: cfg.Health.ProbeTimeout})
	if err != nil {
		return err
	}

	met := newMetrics()
	opts := []stream.Option{stream.WithMetrics(met)}

	var runner *transcoder.ExecRunner
	if cfg.Transcoder.Enabled {
		runner = transcoder.NewExecRunner(cfg.Transcoder.BinaryPath, cfg.Transcoder.OutputDir, log)
		opts = append(opts, stream.WithTranscoder(runner))
	}

	sup := stream.NewSupervisor(stream.NewRegistry(), store, probe, stream.SupervisorConfig{
		PublicBaseURL:    cfg.Relay.PublicBaseURL,
		PersistTimeout:   cfg.Relay.PersistTimeout,
		ProbeTimeout:     cfg.Health.ProbeTimeout,
		SweepTimeout:     cfg.Health.SweepTimeout,
		SweepConcurrency: cfg.Health.SweepConcurrency,
	}, log, opts...)

	sched, err := scheduler.New(sup, cfg.Health.Schedule, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(log, met, sup),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	log.Info("server starting",
		slog.Int("port", cfg.Server.Port),
		slog.String("public_base_url", cfg.Relay.PublicBaseURL),
		slog.String("probe", cfg.Health.Probe),
		slog.String("sweep_schedule", cfg.Health.Schedule),
		slog.Bool("transcoder", cfg.Transcoder.Enabled),
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, draining connections")
	case err := <-serveErr:
		sched.Stop()
		if runner != nil {
			runner.StopAll()
		}
		log.Error("server error", slog.String("error", err.Error()))
		return err
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}

	if runner != nil {
		runner.StopAll()
	}

	log.Info("server stopped")
	return nil
}
