package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	"webindex/pkg/config"
	"webindex/pkg/engine"
	"webindex/pkg/logger"
	"webindex/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(args[1:]); err != nil {
		exit(1)
	}
}

func Execute(args []string) error {
	rootCmd := &cobra.Command{
		Use:          "query",
		Short:        "Interactive search prompt over a built index",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags())
		},
	}
	config.RegisterQueryFlags(rootCmd.Flags())
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func run(flags *pflag.FlagSet) error {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return err
	}
	logger.Setup(settings.Logging.Level, settings.Logging.Format)
	log := logger.WithComponent("query")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if settings.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              settings.Metrics.Addr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		log.Info("serving metrics", "addr", settings.Metrics.Addr)
	}

	log.Info("engine initialization started", "dir", settings.Index.Dir)
	ng, err := engine.NewEngine(settings.Index.Dir, engine.Options{
		CacheSize: settings.Query.CacheSize,
		Workers:   settings.Query.Workers,
		Timeout:   settings.Query.Timeout,
		Rank: engine.RankOptions{
			IDFFloor:  settings.Query.IDFFloor,
			ScanLimit: settings.Query.ScanLimit,
			MinRawTF:  settings.Query.MinRawTF,
		},
		Logger:  logger.WithComponent("engine"),
		Metrics: m,
	})
	if err != nil {
		log.Error("engine initialization failed", "error", err)
		return err
	}
	defer ng.Close()
	log.Info("engine initialization completed")

	ng.Run(settings.Query.TopK)
	return nil
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(reg))
	return mux
}
