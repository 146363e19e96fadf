package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-probe/server"
	"github.com/amartya2002/uptime-probe/store"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the uptime report and request log over HTTP",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default from SERVER_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	addr := a.cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, store.Config{Path: a.cfg.Store.Path, ReadOnly: true})
	if err != nil {
		return exitError(ExitStore, "Unable to read request log %s: %v", a.cfg.Store.Path, err)
	}
	defer s.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(s, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), a.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(ExitConfig, "listen on %s: %v", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("API shutdown failed", zap.Error(err))
	}
	a.logger.Info("API stopped")
	return nil
}
