package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
	"webindex/pkg/analysis"
	"webindex/pkg/metrics"
	"webindex/pkg/parser"
	"webindex/pkg/utils/stream"
	"webindex/pkg/utils/sys"
)

var ErrScratchOverlap = errors.New("scratch dir overlaps index dir")

type Options struct {
	IndexDir string
	Stemmer  string
	Build    BuildOptions
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

type Result struct {
	Report   BuildReport
	Stats    IndexStats
	Duration time.Duration
}

// BuildIndex runs the whole pipeline: partial segments, external merge and
// the side tables. Any IO failure aborts the run.
func BuildIndex(ctx context.Context, opts Options, producer stream.Producer[parser.Entry]) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	analyzer, err := analysis.NewAnalyzer(opts.Stemmer)
	if err != nil {
		return nil, err
	}
	if opts.Build.ScratchDir == "" {
		opts.Build.ScratchDir = filepath.Clean(opts.IndexDir) + ".partial"
	}
	nested, err := sys.Nested(opts.IndexDir, opts.Build.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("resolving scratch dir: %w", err)
	}
	if nested {
		return nil, fmt.Errorf("%w: %s and %s", ErrScratchOverlap, opts.Build.ScratchDir, opts.IndexDir)
	}
	if err := sys.EnsureDir(opts.Build.ScratchDir); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	if err := sys.EnsureDir(opts.IndexDir); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}

	bc := NewBuildContext(opts.Build, analyzer, logger, opts.Metrics)
	if err := bc.Build(ctx, producer); err != nil {
		return nil, fmt.Errorf("building partial index: %w", err)
	}
	report := bc.Report()
	logger.Info("partial index built",
		"seen", report.Seen, "indexed", report.Indexed, "rejected", report.Rejected,
		"segments", report.Segments, "elapsed", time.Since(start))

	paths := PathsIn(opts.IndexDir)
	mc := NewMergeContext(bc.Segments(), opts.Build.ScratchDir, bc.Docs().Len(), paths, logger, opts.Metrics)
	if err := mc.Merge(ctx); err != nil {
		return nil, fmt.Errorf("merging segments: %w", err)
	}

	if err := bc.Docs().Save(paths.Docs); err != nil {
		return nil, err
	}
	stats := IndexStats{
		Docs:           bc.Docs().Len(),
		Terms:          mc.Terms(),
		Postings:       mc.Postings(),
		Segments:       report.Segments,
		Stemmer:        analyzer.StemmerName(),
		NGramSeparator: analysis.NGramSeparator,
	}
	if err := stats.Save(paths.Stats); err != nil {
		return nil, fmt.Errorf("writing stats: %w", err)
	}

	return &Result{
		Report:   report,
		Stats:    stats,
		Duration: time.Since(start),
	}, nil
}

// BuildIndexFromDir indexes a corpus laid out as <dir>/<subdomain>/<page>.json.
func BuildIndexFromDir(ctx context.Context, corpusDir string, opts Options) (*Result, error) {
	entries, err := parser.ReadFiles(corpusDir)
	if err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.Info("corpus listed", "dir", corpusDir, "pages", len(entries))
	}
	return BuildIndex(ctx, opts, stream.NewArrayProducer(entries))
}
