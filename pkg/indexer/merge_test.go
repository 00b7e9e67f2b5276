package indexer

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"webindex/pkg/analysis"
	"webindex/pkg/utils/binary"
	"webindex/pkg/utils/stream"

	"github.com/stretchr/testify/require"
)

func writeTestSegment(t *testing.T, path string, lists ...InvertedList) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	bw := binary.NewBufferedByteWriter(f)
	for _, list := range lists {
		require.NoError(t, WriteInvertedList(bw, list))
	}
	require.NoError(t, bw.Close())
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	b, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, b, 0644))
}

func TestTFIDF(t *testing.T) {
	require.InDelta(t, math.Log(10.0/2.0), TFIDF(1, 2, 10), 1e-12)
	require.InDelta(t, (1+math.Log(4))*math.Log(10.0/2.0), TFIDF(4, 2, 10), 1e-12)
	require.Zero(t, TFIDF(3, 10, 10))
	require.Zero(t, TFIDF(0, 1, 10))
}

func TestMergeCombinesSegments(t *testing.T) {
	dir := t.TempDir()
	seg0 := filepath.Join(dir, "seg0")
	seg1 := filepath.Join(dir, "seg1")
	writeTestSegment(t, seg0,
		InvertedList{Term: "apple", Postings: []Posting{{DocID: 0, TF: 1}, {DocID: 1, TF: 3}}},
		InvertedList{Term: "cherry", Postings: []Posting{{DocID: 1, TF: 1}}},
	)
	writeTestSegment(t, seg1,
		InvertedList{Term: "apple", Postings: []Posting{{DocID: 2, TF: 1}}},
		InvertedList{Term: "banana", Postings: []Posting{{DocID: 3, TF: 2}}},
	)

	paths := PathsIn(dir)
	mc := NewMergeContext([]string{seg0, seg1}, "", 4, paths, testLogger(), nil)
	require.NoError(t, mc.Merge(context.Background()))
	require.Equal(t, 3, mc.Terms())
	require.Equal(t, 5, mc.Postings())

	var terms []string
	lists := map[string]ScoredList{}
	require.NoError(t, ScanIndex(paths.Index, func(_ int64, list ScoredList) error {
		terms = append(terms, list.Term)
		lists[list.Term] = list
		return nil
	}))
	require.Equal(t, []string{"apple", "banana", "cherry"}, terms)

	apple := lists["apple"]
	require.Equal(t, 3, apple.DocFreq())
	require.True(t, apple.Sorted())
	require.Equal(t, 1, apple.Postings[0].DocID, "highest tf ranks first")
	require.InDelta(t, TFIDF(3, 3, 4), apple.Postings[0].TFIDF, 1e-12)
	require.Equal(t, 0, apple.Postings[1].DocID)
	require.Equal(t, 2, apple.Postings[2].DocID)

	for _, seg := range []string{seg0, seg1} {
		_, err := os.Stat(seg)
		require.True(t, os.IsNotExist(err))
	}
}

func TestMergeSingleSegment(t *testing.T) {
	dir := t.TempDir()
	seg := filepath.Join(dir, "seg0")
	writeTestSegment(t, seg,
		InvertedList{Term: "solo", Postings: []Posting{{DocID: 0, TF: 2}, {DocID: 1, TF: 5}}},
	)
	paths := PathsIn(dir)
	require.NoError(t, NewMergeContext([]string{seg}, "", 3, paths, testLogger(), nil).Merge(context.Background()))

	offsets, err := LoadOffsetTable(paths.Offsets)
	require.NoError(t, err)
	require.Equal(t, OffsetTable{"solo": 0}, offsets)

	require.NoError(t, ScanIndex(paths.Index, func(_ int64, list ScoredList) error {
		require.Equal(t, []ScoredPosting{
			{DocID: 1, TF: 5, TFIDF: TFIDF(5, 2, 3)},
			{DocID: 0, TF: 2, TFIDF: TFIDF(2, 2, 3)},
		}, list.Postings)
		return nil
	}))
}

func TestMergeIsIdempotent(t *testing.T) {
	scratch := t.TempDir()
	bc := NewBuildContext(BuildOptions{ScratchDir: scratch, FlushBytes: 200, Batch: 2, Workers: 2}, mustAnalyzer(t), testLogger(), nil)
	require.NoError(t, bc.Build(context.Background(), stream.NewArrayProducer(sampleCorpus())))
	require.Greater(t, len(bc.Segments()), 1)

	var outputs [][]byte
	for range 2 {
		dir := t.TempDir()
		var segments []string
		for _, seg := range bc.Segments() {
			dst := filepath.Join(dir, filepath.Base(seg))
			copyFile(t, seg, dst)
			segments = append(segments, dst)
		}
		paths := PathsIn(dir)
		require.NoError(t, NewMergeContext(segments, "", bc.Docs().Len(), paths, testLogger(), nil).Merge(context.Background()))

		for _, file := range []string{paths.Index, paths.Offsets} {
			b, err := os.ReadFile(file)
			require.NoError(t, err)
			outputs = append(outputs, b)
		}
	}
	require.Equal(t, outputs[0], outputs[2])
	require.Equal(t, outputs[1], outputs[3])
}

func TestMergeCorruptSegmentKeepsInputs(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "seg0")
	bad := filepath.Join(dir, "seg1")
	writeTestSegment(t, good, InvertedList{Term: "fine", Postings: []Posting{{DocID: 0, TF: 1}}})

	f, err := os.Create(bad)
	require.NoError(t, err)
	bw := binary.NewBufferedByteWriter(f)
	require.NoError(t, bw.WriteString("broken"))
	require.NoError(t, bw.WriteInt(3))
	require.NoError(t, bw.WriteInt(0))
	require.NoError(t, bw.Close())

	paths := PathsIn(dir)
	err = NewMergeContext([]string{good, bad}, "", 1, paths, testLogger(), nil).Merge(context.Background())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	for _, seg := range []string{good, bad} {
		_, err := os.Stat(seg)
		require.NoError(t, err)
	}
	for _, out := range []string{paths.Index, paths.Offsets, paths.Index + ".tmp", paths.Offsets + ".tmp"} {
		_, err := os.Stat(out)
		require.True(t, os.IsNotExist(err), out)
	}
}

func TestMergeUnsortedSegment(t *testing.T) {
	dir := t.TempDir()
	seg := filepath.Join(dir, "seg0")
	writeTestSegment(t, seg,
		InvertedList{Term: "zeta", Postings: []Posting{{DocID: 0, TF: 1}}},
		InvertedList{Term: "alpha", Postings: []Posting{{DocID: 0, TF: 1}}},
	)
	err := NewMergeContext([]string{seg}, "", 1, PathsIn(dir), testLogger(), nil).Merge(context.Background())
	require.ErrorIs(t, err, ErrUnsortedSegment)
}

func TestMergeWithoutSegments(t *testing.T) {
	err := NewMergeContext(nil, "", 0, PathsIn(t.TempDir()), testLogger(), nil).Merge(context.Background())
	require.ErrorIs(t, err, ErrNoSegments)
}

func mustAnalyzer(t *testing.T) *analysis.Analyzer {
	t.Helper()
	a, err := analysis.NewAnalyzer("porter")
	require.NoError(t, err)
	return a
}
