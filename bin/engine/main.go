package main

import (
	"context"
	"fmt"
	"io"
	"os"
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
	if err := Execute(args[1:], os.Stdout); err != nil {
		exit(1)
	}
}

// Execute answers every positional argument as a separate query.
func Execute(args []string, out io.Writer) error {
	rootCmd := &cobra.Command{
		Use:          "engine [query...]",
		Short:        "Run one-shot queries against a built index",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, queries []string) error {
			return run(cmd.Context(), cmd.Flags(), queries, out)
		},
	}
	config.RegisterQueryFlags(rootCmd.Flags())
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func run(ctx context.Context, flags *pflag.FlagSet, queries []string, out io.Writer) error {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return err
	}
	logger.Setup(settings.Logging.Level, settings.Logging.Format)

	ng, err := engine.NewEngine(settings.Index.Dir, engineOptions(settings))
	if err != nil {
		return err
	}
	defer ng.Close()

	for _, query := range queries {
		fmt.Fprintf(out, "> %s\n", query)
		result, err := ng.Search(ctx, query, settings.Query.TopK)
		if err != nil {
			return err
		}
		engine.PrintResult(out, result)
	}
	return nil
}

func engineOptions(settings *config.Settings) engine.Options {
	return engine.Options{
		CacheSize: settings.Query.CacheSize,
		Workers:   settings.Query.Workers,
		Timeout:   settings.Query.Timeout,
		Rank: engine.RankOptions{
			IDFFloor:  settings.Query.IDFFloor,
			ScanLimit: settings.Query.ScanLimit,
			MinRawTF:  settings.Query.MinRawTF,
		},
		Logger:  logger.WithComponent("engine"),
		Metrics: metrics.New(prometheus.NewRegistry()),
	}
}
