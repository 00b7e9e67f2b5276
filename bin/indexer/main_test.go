package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"webindex/pkg/indexer"
	"webindex/pkg/metrics"
	"webindex/pkg/parser"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, dir string) {
	body := "<p>Indexing pipelines turn crawled pages into posting lists.</p>" +
		"<p>Each posting list is sorted and merged from partial segments.</p>"
	pages := map[string]parser.RawDoc{
		"www_ics_uci_edu/a.json": {URL: "https://www.ics.uci.edu/a", Content: "<html><title>Alpha</title><body>" + body + "</body></html>"},
		"www_ics_uci_edu/b.json": {URL: "https://www.ics.uci.edu/b", Content: "<html><title>Beta</title><body>" + body + "<p>search engine</p></body></html>"},
		"vision_uci_edu/c.json":  {URL: "https://vision.uci.edu/c", Content: "<html><body><p>too thin</p></body></html>"},
	}
	for name, doc := range pages {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0755))
		require.NoError(t, parser.WriteRawDoc(filepath.Join(dir, name), doc))
	}
}

func TestExecuteBuildsAndVerifies(t *testing.T) {
	corpus := t.TempDir()
	writeCorpus(t, corpus)
	indexDir := filepath.Join(t.TempDir(), "index")

	err := Execute([]string{"--corpus", corpus, "--index-dir", indexDir, "--verify", "--log-level", "error"})
	require.NoError(t, err)

	stats, err := indexer.LoadIndexStats(indexer.PathsIn(indexDir).Stats)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Docs)
	require.Positive(t, stats.Terms)
}

func TestExecuteMissingCorpus(t *testing.T) {
	err := Execute([]string{"--corpus", filepath.Join(t.TempDir(), "missing"), "--index-dir", filepath.Join(t.TempDir(), "index"), "--log-level", "error"})
	require.Error(t, err)
}

func TestExecuteInvalidFlag(t *testing.T) {
	require.Error(t, Execute([]string{"--no-such-flag"}))
}

func TestRunMainFailure(t *testing.T) {
	code := -1
	runMain([]string{"indexer", "--no-such-flag"}, func(c int) { code = c })
	require.Equal(t, 1, code)
}

func TestLogCountersReportsBuildMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.DocIndexed()
	m.DocIndexed()
	m.SegmentFlushed()

	var buf bytes.Buffer
	logCounters(slog.New(slog.NewTextHandler(&buf, nil)), reg)

	out := buf.String()
	require.Contains(t, out, "msg=\"build metrics\"")
	require.Contains(t, out, "webindex_docs_indexed_total=2")
	require.Contains(t, out, "webindex_segments_flushed_total=1")
	require.NotContains(t, out, "webindex_queries_total")
}
