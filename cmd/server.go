package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	app "volunteer-attendance/internal"
	"volunteer-attendance/internal/email"
	"volunteer-attendance/internal/reconcile"
	"volunteer-attendance/internal/report"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the sync HTTP server",
	Long:  `Serve the sync API and, when sync.interval is set, run the combined sync on a schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ServerMain(cmd.Context())
	},
}

// scheduleSync runs the combined sync every interval until ctx is done.
// Runs that need attention are mailed to the report recipients.
func scheduleSync(ctx context.Context, engine *reconcile.Engine, reporter *report.Reporter, interval time.Duration) {
	logger := slog.With("component", "scheduler", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Scheduled sync enabled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := engine.RunCombinedSync(ctx)
		if errors.Is(err, reconcile.ErrRunInProgress) {
			logger.Info("Skipping scheduled sync, a run is already active")
			continue
		} else if err != nil {
			logger.Error("Scheduled sync failed", "error", err)
			continue
		}

		if _, err := reporter.Notify(ctx, res); err != nil {
			logger.Error("Failed to send sync report", "run_id", res.RunID, "error", err)
		}
	}
}

func ServerMain(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine := newEngine(reg)

	if cfg.Sync.Interval > 0 {
		reporter := report.NewReporter(email.NewClient(&cfg.Email), &cfg.Report)
		go scheduleSync(ctx, engine, reporter, cfg.Sync.Interval)
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: app.HTTPServer(cfg, engine, provider, reg),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "listen", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
