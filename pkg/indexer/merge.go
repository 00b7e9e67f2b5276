package indexer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"webindex/pkg/metrics"
	"webindex/pkg/utils/binary"

	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
)

var (
	ErrNoSegments      = errors.New("no partial segments to merge")
	ErrUnsortedSegment = errors.New("segment terms out of order")
)

// MergeContext carries the state of one external merge of partial segments
// into the final index.
type MergeContext struct {
	segments   []string
	scratchDir string
	docCount   int
	paths      IndexPaths
	logger     *slog.Logger
	metrics    *metrics.Metrics

	terms    int
	postings int
}

func NewMergeContext(segments []string, scratchDir string, docCount int, paths IndexPaths, logger *slog.Logger, m *metrics.Metrics) *MergeContext {
	return &MergeContext{
		segments:   segments,
		scratchDir: scratchDir,
		docCount:   docCount,
		paths:      paths,
		logger:     logger,
		metrics:    m,
	}
}

// mergeKey is what the priority queue orders on; the list itself stays in
// pending so queue items remain comparable.
type mergeKey struct {
	term string
	src  int
}

func compareMergeKey(a, b mergeKey) int {
	if r := cmp.Compare(a.term, b.term); r != 0 {
		return r
	}
	return cmp.Compare(a.src, b.src)
}

// TFIDF is the final posting weight (1 + ln tf) * ln(n / df).
func TFIDF(tf, df, docCount int) float64 {
	if tf <= 0 || df <= 0 || docCount <= 0 {
		return 0
	}
	return (1 + math.Log(float64(tf))) * math.Log(float64(docCount)/float64(df))
}

// Finalize turns a merged DocID-ordered list into its scored form.
func Finalize(list InvertedList, docCount int) ScoredList {
	df := len(list.Postings)
	scored := ScoredList{
		Term:     list.Term,
		Postings: make([]ScoredPosting, 0, df),
	}
	for _, p := range list.Postings {
		scored.Postings = append(scored.Postings, ScoredPosting{
			DocID: p.DocID,
			TF:    p.TF,
			TFIDF: TFIDF(p.TF, df, docCount),
		})
	}
	slices.SortFunc(scored.Postings, ByScore)
	return scored
}

// Merge streams all segments through a k-way merge and writes the final index
// and offset table. Segments and an emptied scratch dir are removed only on
// success; on failure the partial outputs are removed and the segments kept.
func (mc *MergeContext) Merge(ctx context.Context) (err error) {
	if len(mc.segments) == 0 {
		return ErrNoSegments
	}

	indexTmp := mc.paths.Index + ".tmp"
	offsetTmp := mc.paths.Offsets + ".tmp"
	defer func() {
		if err != nil {
			os.Remove(indexTmp)
			os.Remove(offsetTmp)
		}
	}()

	if err := mc.mergeTo(ctx, indexTmp, offsetTmp); err != nil {
		return err
	}
	if err := os.Rename(indexTmp, mc.paths.Index); err != nil {
		return fmt.Errorf("installing index: %w", err)
	}
	if err := os.Rename(offsetTmp, mc.paths.Offsets); err != nil {
		return fmt.Errorf("installing offset table: %w", err)
	}

	for _, segment := range mc.segments {
		if err := os.Remove(segment); err != nil && !os.IsNotExist(err) {
			mc.logger.Warn("failed to remove segment", "path", segment, "error", err)
		}
	}
	// The scratch dir goes only once it is empty; whatever else lives there
	// is not ours to delete.
	if mc.scratchDir != "" {
		if err := os.Remove(mc.scratchDir); err != nil && !os.IsNotExist(err) {
			mc.logger.Debug("scratch dir kept", "path", mc.scratchDir, "error", err)
		}
	}
	mc.logger.Info("merge completed", "segments", len(mc.segments), "terms", mc.terms, "postings", mc.postings)
	return nil
}

func (mc *MergeContext) mergeTo(ctx context.Context, indexPath, offsetPath string) error {
	readers := make([]*SegmentReader, len(mc.segments))
	defer func() {
		for _, r := range readers {
			if r != nil {
				r.Close()
			}
		}
	}()

	readerQ := pq.NewWith(compareMergeKey)
	pending := make([]InvertedList, len(mc.segments))

	advance := func(src int) error {
		list, err := readers[src].Next()
		if err == io.EOF {
			readers[src].Close()
			readers[src] = nil
			return nil
		}
		if err != nil {
			return err
		}
		pending[src] = list
		readerQ.Enqueue(mergeKey{term: list.Term, src: src})
		return nil
	}

	for i, segment := range mc.segments {
		r, err := OpenSegment(segment)
		if err != nil {
			return err
		}
		readers[i] = r
		if err := advance(i); err != nil {
			return err
		}
	}

	indexF, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	bufWriter := binary.NewBufferedWriteCloser(indexF)
	bw := binary.NewByteWriter(bufWriter)
	indexClosed := false
	defer func() {
		if !indexClosed {
			bw.Close()
		}
	}()

	offsetF, err := os.Create(offsetPath)
	if err != nil {
		return fmt.Errorf("creating offset table: %w", err)
	}
	defer offsetF.Close()
	offsets, err := newJSONObjectWriter(offsetF)
	if err != nil {
		return fmt.Errorf("writing offset table: %w", err)
	}

	lastTerm := ""
	writeTerm := func(list InvertedList) error {
		if mc.terms > 0 && list.Term <= lastTerm {
			return fmt.Errorf("%w: %q after %q", ErrUnsortedSegment, list.Term, lastTerm)
		}
		scored := Finalize(list, mc.docCount)
		if err := offsets.Entry(list.Term, bufWriter.Total()); err != nil {
			return fmt.Errorf("writing offset table: %w", err)
		}
		if err := WriteScoredList(bw, scored); err != nil {
			return fmt.Errorf("writing index: %w", err)
		}
		lastTerm = list.Term
		mc.terms++
		mc.postings += len(scored.Postings)
		mc.metrics.TermMerged(len(scored.Postings))
		return nil
	}

	var current *InvertedList
	for !readerQ.Empty() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, ok := readerQ.Dequeue()
		if !ok {
			break
		}
		list := pending[key.src]
		pending[key.src] = InvertedList{}

		switch {
		case current == nil:
			current = &list
		case current.Term == list.Term:
			current.Postings = MergePostings(current.Postings, list.Postings)
		default:
			if err := writeTerm(*current); err != nil {
				return err
			}
			current = &list
		}

		if err := advance(key.src); err != nil {
			return err
		}
	}
	if current != nil {
		if err := writeTerm(*current); err != nil {
			return err
		}
	}

	indexClosed = true
	if err := bw.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	if err := offsets.Close(); err != nil {
		return fmt.Errorf("closing offset table: %w", err)
	}
	return offsetF.Sync()
}

func (mc *MergeContext) Terms() int {
	return mc.terms
}

func (mc *MergeContext) Postings() int {
	return mc.postings
}
