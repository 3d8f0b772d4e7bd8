package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/mongoload/api"
	"github.com/TFMV/mongoload/bench"
	"github.com/TFMV/mongoload/config"
	"github.com/TFMV/mongoload/logger"
	"github.com/TFMV/mongoload/metrics"
)

// newServeCommand creates the serve command.
func newServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `The serve command exposes health, version, run history and a POST /runs
endpoint that starts a benchmark from the loaded configuration. One run is
admitted at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(false)
			if err != nil {
				return err
			}
			log, err := c.setupLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().String("port", "", "Port to listen on")
	cmd.Flags().Bool("prefork", false, "Enable Fiber prefork")
	c.bind(cmd, "server.port", "port")
	c.bind(cmd, "server.prefork", "prefork")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	opts := api.ServerOptions{
		Port:    cfg.Server.Port,
		Prefork: cfg.Server.Prefork,
		Config:  cfg,
		Logger:  log,
	}

	var stores []metrics.MetricsStore
	if cfg.Output.HistoryPath != "" {
		history, err := metrics.OpenBoltHistoryStore(cfg.Output.HistoryPath)
		if err != nil {
			return err
		}
		defer history.Close()
		opts.History = history
		stores = append(stores, history)
	}

	opts.Run = func(ctx context.Context, runCfg *config.Config) (metrics.BenchmarkReport, error) {
		return bench.NewRunner(runCfg, log, bench.WithStores(stores...)).Run(ctx)
	}

	return api.NewServer(opts).Start(ctx)
}
