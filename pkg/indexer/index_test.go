package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"webindex/pkg/parser"
	"webindex/pkg/utils/stream"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func htmlPage(title string, paragraphs ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>" + title + "</title></head><body>")
	for _, p := range paragraphs {
		sb.WriteString("<p>" + p + "</p>")
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func rawEntry(subdomain, file, url, content string) parser.Entry {
	return parser.Entry{
		Subdomain: subdomain,
		File:      file,
		Raw:       &parser.RawDoc{URL: url, Content: content},
	}
}

func sampleCorpus() []parser.Entry {
	return []parser.Entry{
		rawEntry("www_ics_uci_edu", "a", "https://www.ics.uci.edu/a",
			htmlPage("Distributed systems", "Consensus protocols keep replicas consistent.", "Leader election relies on timeouts.")),
		rawEntry("www_ics_uci_edu", "b", "https://www.ics.uci.edu/b",
			htmlPage("Information retrieval", "An inverted index maps terms to postings.", "Ranking uses cosine similarity over postings.")),
		rawEntry("www_stat_uci_edu", "c", "https://www.stat.uci.edu/c",
			htmlPage("Statistics seminar", "Bayesian inference and sampling methods.", "Speakers discuss inference at scale.")),
		rawEntry("www_stat_uci_edu", "d", "https://www.stat.uci.edu/d",
			htmlPage("Machine learning", "Gradient descent trains models.", "Learning rates control convergence.")),
	}
}

func testOptions(t *testing.T, dir string) Options {
	return Options{
		IndexDir: filepath.Join(dir, "index"),
		Stemmer:  "porter",
		Build: BuildOptions{
			ScratchDir: filepath.Join(dir, "scratch"),
			Batch:      2,
			Workers:    2,
		},
		Logger: testLogger(),
	}
}

func buildTestIndex(t *testing.T, dir string, entries []parser.Entry, mutate func(*Options)) *Result {
	t.Helper()
	opts := testOptions(t, dir)
	if mutate != nil {
		mutate(&opts)
	}
	result, err := BuildIndex(context.Background(), opts, stream.NewArrayProducer(entries))
	require.NoError(t, err)
	return result
}

func TestBuildIndexRejections(t *testing.T) {
	entries := []parser.Entry{
		rawEntry("www_ics_uci_edu", "a", "https://www.ics.uci.edu/page",
			htmlPage("Original", "First paragraph of the original page.", "Second paragraph of the original page.")),
		rawEntry("www_ics_uci_edu", "b", "https://www.ics.uci.edu/page#section",
			htmlPage("Fragment copy", "Different words on a page with the same url.", "More text under a fragment.")),
		rawEntry("www_ics_uci_edu", "c", "https://www.ics.uci.edu/thin",
			"<html><body><p>just one line</p></body></html>"),
	}

	dir := t.TempDir()
	result := buildTestIndex(t, dir, entries, nil)

	require.Equal(t, 3, result.Report.Seen)
	require.Equal(t, 1, result.Report.Indexed)
	require.Equal(t, 1, result.Report.Rejected[RejectDuplicateURL])
	require.Equal(t, 1, result.Report.Rejected[RejectThin])
	require.Equal(t, 1, result.Stats.Docs)

	docs, err := LoadDocStore(PathsIn(filepath.Join(dir, "index")).Docs)
	require.NoError(t, err)
	meta, ok := docs.Get(0)
	require.True(t, ok)
	require.Equal(t, "https://www.ics.uci.edu/page", meta.URL)
	require.Equal(t, "a", meta.File)
}

func TestBuildIndexDuplicateContent(t *testing.T) {
	content := htmlPage("Same", "Identical body text here.", "And identical again.")
	entries := []parser.Entry{
		rawEntry("a_uci_edu", "1", "https://a.uci.edu/1", content),
		rawEntry("a_uci_edu", "2", "https://a.uci.edu/2", content),
		rawEntry("a_uci_edu", "3", "https://a.uci.edu/3", "<html><body>   </body></html>"),
		{Subdomain: "a_uci_edu", File: "4", Path: filepath.Join(t.TempDir(), "missing.json")},
	}
	result := buildTestIndex(t, t.TempDir(), entries, nil)

	require.Equal(t, 1, result.Report.Indexed)
	require.Equal(t, 1, result.Report.Rejected[RejectDuplicate])
	require.Equal(t, 1, result.Report.Rejected[RejectNoContent])
	require.Equal(t, 1, result.Report.Rejected[RejectUnreadable])
}

func TestBuildIndexNearDuplicates(t *testing.T) {
	entries := []parser.Entry{
		rawEntry("a_uci_edu", "1", "https://a.uci.edu/1", htmlPage("Event", "The seminar starts at noon.", "Room two hundred.")),
		rawEntry("a_uci_edu", "2", "https://a.uci.edu/2", htmlPage("Event", "The seminar starts at noon.", "Room two hundred. ")),
	}

	plain := buildTestIndex(t, t.TempDir(), entries, nil)
	require.Equal(t, 2, plain.Report.Indexed)

	dedup := buildTestIndex(t, t.TempDir(), entries, func(o *Options) { o.Build.NearDuplicates = true })
	require.Equal(t, 1, dedup.Report.Indexed)
	require.Equal(t, 1, dedup.Report.Rejected[RejectNearDup])
}

func TestDocIDsAreDense(t *testing.T) {
	dir := t.TempDir()
	entries := append(sampleCorpus(),
		rawEntry("www_stat_uci_edu", "e", "https://www.stat.uci.edu/c#dup", htmlPage("x", "y z", "w v")))
	result := buildTestIndex(t, dir, entries, nil)
	require.Equal(t, 4, result.Stats.Docs)

	paths := PathsIn(filepath.Join(dir, "index"))
	docs, err := LoadDocStore(paths.Docs)
	require.NoError(t, err)
	require.Equal(t, 4, docs.Len())
	for id := range docs.Len() {
		meta, ok := docs.Get(id)
		require.True(t, ok)
		require.Positive(t, meta.Length)
	}

	err = ScanIndex(paths.Index, func(_ int64, list ScoredList) error {
		for _, p := range list.Postings {
			require.GreaterOrEqual(t, p.DocID, 0)
			require.Less(t, p.DocID, docs.Len())
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSmallFlushThresholdWritesManySegments(t *testing.T) {
	dir := t.TempDir()
	result := buildTestIndex(t, dir, sampleCorpus(), func(o *Options) { o.Build.FlushBytes = 1 })

	require.Equal(t, 4, result.Report.Segments)
	require.Equal(t, 4, result.Stats.Segments)
	require.NoError(t, VerifyIndex(filepath.Join(dir, "index")))

	_, err := os.Stat(filepath.Join(dir, "scratch"))
	require.True(t, os.IsNotExist(err), "scratch dir must be removed after merge")
}

func TestScratchDirOverlappingIndexDirIsRejected(t *testing.T) {
	for name, scratch := range map[string]func(index string) string{
		"same":   func(index string) string { return index },
		"inside": func(index string) string { return filepath.Join(index, "partial") },
		"parent": func(index string) string { return filepath.Dir(index) },
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			opts := testOptions(t, dir)
			opts.Build.ScratchDir = scratch(opts.IndexDir)
			require.NoError(t, os.MkdirAll(opts.IndexDir, 0755))
			keep := filepath.Join(opts.IndexDir, "keep.txt")
			require.NoError(t, os.WriteFile(keep, []byte("keep"), 0644))

			_, err := BuildIndex(context.Background(), opts, stream.NewArrayProducer(sampleCorpus()))
			require.ErrorIs(t, err, ErrScratchOverlap)

			data, err := os.ReadFile(keep)
			require.NoError(t, err)
			require.Equal(t, "keep", string(data))
		})
	}
}

func TestExistingScratchDirKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "scratch")
	require.NoError(t, os.MkdirAll(scratch, 0755))
	foreign := filepath.Join(scratch, "notes.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("mine"), 0644))

	result := buildTestIndex(t, dir, sampleCorpus(), func(o *Options) { o.Build.FlushBytes = 1 })
	require.Equal(t, 4, result.Report.Segments)
	require.NoError(t, VerifyIndex(filepath.Join(dir, "index")))

	data, err := os.ReadFile(foreign)
	require.NoError(t, err)
	require.Equal(t, "mine", string(data))
	matches, err := filepath.Glob(filepath.Join(scratch, "segment-*.bin"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestSegmentCountDoesNotChangeIndex(t *testing.T) {
	one := t.TempDir()
	many := t.TempDir()
	buildTestIndex(t, one, sampleCorpus(), nil)
	buildTestIndex(t, many, sampleCorpus(), func(o *Options) { o.Build.FlushBytes = 1 })

	for _, name := range []string{IndexFile, OffsetFile, DocFile} {
		a, err := os.ReadFile(filepath.Join(one, "index", name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(many, "index", name))
		require.NoError(t, err)
		require.Equal(t, a, b, name)
	}
}

func TestWorkerCountDoesNotChangeIndex(t *testing.T) {
	var outputs [][]byte
	for _, workers := range []int{1, 4} {
		dir := t.TempDir()
		buildTestIndex(t, dir, sampleCorpus(), func(o *Options) {
			o.Build.Workers = workers
			o.Build.Batch = 3
		})
		for _, name := range []string{IndexFile, OffsetFile, DocFile} {
			b, err := os.ReadFile(filepath.Join(dir, "index", name))
			require.NoError(t, err)
			outputs = append(outputs, b)
		}
	}
	require.Equal(t, outputs[:3], outputs[3:])
}

func TestBuildIndexEmptyCorpus(t *testing.T) {
	opts := testOptions(t, t.TempDir())
	_, err := BuildIndex(context.Background(), opts, stream.NewArrayProducer([]parser.Entry{}))
	require.ErrorIs(t, err, ErrNoSegments)
}

func TestBuildIndexCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildIndex(ctx, testOptions(t, t.TempDir()), stream.NewArrayProducer(sampleCorpus()))
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildIndexFromDir(t *testing.T) {
	corpus := t.TempDir()
	for i, entry := range sampleCorpus() {
		dir := filepath.Join(corpus, entry.Subdomain)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, parser.WriteRawDoc(filepath.Join(dir, fmt.Sprintf("%02d.json", i)), *entry.Raw))
	}

	dir := t.TempDir()
	opts := testOptions(t, dir)
	result, err := BuildIndexFromDir(context.Background(), corpus, opts)
	require.NoError(t, err)
	require.Equal(t, 4, result.Stats.Docs)
	require.Equal(t, "porter", result.Stats.Stemmer)

	stats, err := LoadIndexStats(PathsIn(opts.IndexDir).Stats)
	require.NoError(t, err)
	require.Equal(t, result.Stats, stats)

	docs, err := LoadDocStore(PathsIn(opts.IndexDir).Docs)
	require.NoError(t, err)
	first, _ := docs.Get(0)
	require.Equal(t, "www_ics_uci_edu", first.Subdomain)
	require.Equal(t, "00", first.File)
}

func TestTermsIncludeNGrams(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, sampleCorpus(), nil)

	offsets, err := LoadOffsetTable(PathsIn(filepath.Join(dir, "index")).Offsets)
	require.NoError(t, err)
	require.Contains(t, offsets, "machin")
	require.Contains(t, offsets, "machin learn")
	require.Contains(t, offsets, "invert index map")
}
