package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"webindex/pkg/config"
	"webindex/pkg/indexer"
	"webindex/pkg/logger"
	"webindex/pkg/metrics"
	"webindex/pkg/utils/sys"

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
		Use:          "indexer",
		Short:        "Build the inverted index of a crawled corpus",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.Flags())
		},
	}
	config.RegisterIndexFlags(rootCmd.Flags())
	rootCmd.Flags().Bool("verify", false, "Check the index after building it")
	rootCmd.Flags().String("trace", "", "Write an execution trace to this file")
	rootCmd.Flags().String("memprofile", "", "Write a heap profile to this file")
	rootCmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func run(ctx context.Context, flags *pflag.FlagSet) error {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return err
	}
	logger.Setup(settings.Logging.Level, settings.Logging.Format)
	log := logger.WithComponent("indexer")

	if file, _ := flags.GetString("trace"); file != "" {
		stopTrace, err := sys.StartTrace(file)
		if err != nil {
			return err
		}
		defer stopTrace()
	}

	reg := prometheus.NewRegistry()
	opts := indexer.Options{
		IndexDir: settings.Index.Dir,
		Stemmer:  settings.Index.Stemmer,
		Build: indexer.BuildOptions{
			ScratchDir:     settings.Index.ScratchPath(),
			FlushBytes:     settings.Index.FlushBytes,
			Batch:          settings.Index.Batch,
			Workers:        settings.Index.Workers,
			NearDuplicates: settings.Index.NearDuplicates,
		},
		Logger:  log,
		Metrics: metrics.New(reg),
	}
	result, err := indexer.BuildIndexFromDir(ctx, settings.Corpus.Dir, opts)
	if err != nil {
		log.Error("index build failed", "error", err)
		return err
	}
	sys.LogMemoryUsage(log)
	log.Info("index built",
		"dir", settings.Index.Dir,
		"docs", result.Stats.Docs,
		"terms", result.Stats.Terms,
		"postings", result.Stats.Postings,
		"segments", result.Stats.Segments,
		"elapsed", result.Duration)
	for reason, n := range result.Report.Rejected {
		log.Info("pages rejected", "reason", reason, "count", n)
	}
	logCounters(log, reg)

	if verify, _ := flags.GetBool("verify"); verify {
		if err := indexer.VerifyIndex(settings.Index.Dir); err != nil {
			log.Error("index verification failed", "error", err)
			return err
		}
		log.Info("index verified")
	}

	if file, _ := flags.GetString("memprofile"); file != "" {
		if err := sys.WriteMemoryProfile(file); err != nil {
			return fmt.Errorf("writing memory profile: %w", err)
		}
	}
	return nil
}

func logCounters(log *slog.Logger, g prometheus.Gatherer) {
	counters, err := metrics.Counters(g)
	if err != nil {
		log.Warn("gathering build metrics failed", "error", err)
		return
	}
	names := slices.Sorted(maps.Keys(counters))
	attrs := make([]any, 0, 2*len(names))
	for _, name := range names {
		attrs = append(attrs, name, counters[name])
	}
	log.Info("build metrics", attrs...)
}
