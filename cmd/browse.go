package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/browser"
	"github.com/cometlabs/comet/internal/observability"
	"github.com/cometlabs/comet/internal/store"
	"github.com/cometlabs/comet/internal/supervisor"
)

var (
	browseModel      string
	browseBackend    string
	browseIterations int
	browseHeaded     bool
)

var browseCmd = &cobra.Command{
	Use:   "browse [goal]",
	Short: "Run a single browsing task and print the answer.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		taskStore := store.NewMemory()
		defer taskStore.Close()

		browsers := browser.NewManager(cfg.Browser, logger)
		defer browsers.Shutdown(context.Background())

		sup := supervisor.New(
			cfg.Supervisor,
			cfg.Browser,
			taskStore,
			browsers,
			supervisor.DefaultClientFactory(cfg.LLM, logger),
			supervisor.NewMetrics(prometheus.NewRegistry()),
			logger,
		)

		headless := !browseHeaded
		req := schemas.BrowseRequest{
			Goal:          args[0],
			Model:         browseModel,
			BackendType:   browseBackend,
			MaxIterations: browseIterations,
			Headless:      &headless,
		}

		task, err := sup.SubmitAndWait(ctx, req)
		if err != nil {
			return err
		}

		if task.Status == schemas.StatusFailed {
			return fmt.Errorf("task failed: %s", task.Error)
		}
		if task.Result == nil {
			return fmt.Errorf("task finished without a result")
		}

		logger.Info("Task finished.",
			zap.Bool("success", task.Result.Success),
			zap.Int("iterations", task.Result.Iterations),
			zap.String("finish_reason", task.Result.FinishReason),
		)
		fmt.Println(task.Result.Answer)
		for _, path := range task.Result.Screenshots {
			fmt.Fprintf(os.Stderr, "screenshot: %s\n", path)
		}
		return nil
	},
}

func init() {
	browseCmd.Flags().StringVar(&browseModel, "model", "", "override the configured model")
	browseCmd.Flags().StringVar(&browseBackend, "backend", "", "override the configured backend (openai or ollama)")
	browseCmd.Flags().IntVar(&browseIterations, "max-iterations", 0, "override the configured iteration budget")
	browseCmd.Flags().BoolVar(&browseHeaded, "headed", false, "run the browser with a visible window")
	rootCmd.AddCommand(browseCmd)
}
