package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/internal/api"
	"github.com/cometlabs/comet/internal/browser"
	"github.com/cometlabs/comet/internal/observability"
	"github.com/cometlabs/comet/internal/store"
	"github.com/cometlabs/comet/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browsing agent as an HTTP service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		taskStore, err := store.New(cfg.Store)
		if err != nil {
			return err
		}
		defer taskStore.Close()

		browsers := browser.NewManager(cfg.Browser, logger)

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		sup := supervisor.New(
			cfg.Supervisor,
			cfg.Browser,
			taskStore,
			browsers,
			supervisor.DefaultClientFactory(cfg.LLM, logger),
			supervisor.NewMetrics(registry),
			logger,
		)

		server := api.NewServer(sup, registry, logger).NewHTTPServer(cfg.Server)

		errCh := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening.", zap.String("addr", cfg.Server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown incomplete.", zap.Error(err))
		}
		if err := sup.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Supervisor drain incomplete.", zap.Error(err))
		}
		if err := browsers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown incomplete.", zap.Error(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
