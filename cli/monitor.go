package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-probe/store"
	"github.com/amartya2002/uptime-probe/telemetry"
	"github.com/amartya2002/uptime-probe/uptime"
)

// NewMonitorCmd creates the "monitor" subcommand.
func NewMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Probe the endpoint for a fixed time and log every outcome",
		RunE:  runMonitor,
	}

	cmd.Flags().String("cases", "", "Test-case file, JSON or YAML (default from TEST_CASES_PATH)")
	cmd.Flags().Duration("duration", 0, "Total run time (default from TIMEOUT_MONITOR_IN_MINUTES)")
	cmd.Flags().Duration("interval", 0, "Delay between probes (default from TIMEOUT_BETWEEN_REQUESTS)")

	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	casesPath := cfg.Monitor.CasesPath
	if p, _ := cmd.Flags().GetString("cases"); p != "" {
		casesPath = p
	}
	duration := cfg.Monitor.Duration()
	if cmd.Flags().Changed("duration") {
		duration, _ = cmd.Flags().GetDuration("duration")
	}
	interval := cfg.Monitor.Interval()
	if cmd.Flags().Changed("interval") {
		interval, _ = cmd.Flags().GetDuration("interval")
	}

	cases, err := uptime.LoadCases(casesPath)
	if err != nil {
		return exitError(ExitConfig, "%v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		return exitError(ExitConfig, "%v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := shutdownTracing(sctx); serr != nil {
			a.logger.Warn("Tracing shutdown failed", zap.Error(serr))
		}
	}()

	reg := prometheus.NewRegistry()
	metrics, err := uptime.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	if cfg.Server.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(cfg.Server.MetricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), a.logger)
		if err != nil {
			return exitError(ExitConfig, "metrics listener: %v", err)
		}
		defer stopMetrics()
	}

	client := uptime.NewClient(cfg.Probe.ProbeURL(),
		uptime.WithTimeout(cfg.Probe.Timeout()),
		uptime.WithMetrics(metrics),
	)
	openStore := func(ctx context.Context) (uptime.RecordStore, error) {
		s, err := store.Open(ctx, store.Config{Path: cfg.Store.Path})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	poller := uptime.NewPoller(client, openStore,
		uptime.WithDuration(duration),
		uptime.WithInterval(interval),
		uptime.WithLogger(a.logger),
		uptime.WithLogLevel(uptime.ParseLogLevel(cfg.Log.Level)),
		uptime.WithPollerMetrics(metrics),
		uptime.WithOutput(cmd.OutOrStdout()),
		uptime.WithProgress(cmd.OutOrStdout(), time.Second),
	)

	sum, err := poller.Run(ctx, cases)
	var openErr *uptime.StoreOpenError
	if errors.As(err, &openErr) {
		return exitError(ExitStore, "Unable to open request log %s: %v", cfg.Store.Path, openErr.Err)
	}
	if err != nil {
		return exitError(ExitStore, "%v", err)
	}

	a.logger.Info("Monitor finished",
		zap.String("run_id", sum.RunID),
		zap.Int("requests", sum.Requests),
		zap.Int("store_failures", sum.Failures),
		zap.Bool("interrupted", sum.Interrupted))
	return nil
}

// serveMetrics exposes h on addr until the returned stop is called.
func serveMetrics(addr string, h http.Handler, logger *zap.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics listener stopped", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
