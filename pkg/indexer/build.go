package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"webindex/pkg/analysis"
	"webindex/pkg/metrics"
	"webindex/pkg/parser"
	"webindex/pkg/utils/stream"
	"webindex/pkg/utils/sys"
	"webindex/pkg/utils/units"

	"golang.org/x/sync/errgroup"
)

const DefaultFlushBytes = 14 * units.MiB

// Reasons a page never makes it into the index.
const (
	RejectUnreadable   = "unreadable"
	RejectNoContent    = "no_content"
	RejectDuplicateURL = "duplicate_url"
	RejectDuplicate    = "duplicate_content"
	RejectNearDup      = "near_duplicate"
	RejectThin         = "thin_content"
)

type BuildOptions struct {
	ScratchDir     string
	FlushBytes     int64
	Batch          int
	Workers        int
	NearDuplicates bool
}

func (o *BuildOptions) setDefaults() {
	if o.FlushBytes <= 0 {
		o.FlushBytes = DefaultFlushBytes
	}
	if o.Batch <= 0 {
		o.Batch = 100
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
}

type BuildReport struct {
	Seen     int
	Indexed  int
	Rejected map[string]int
	Segments int
}

// BuildContext carries all state of one partial index build: the in-memory
// index, dedup sets, the document id counter and the flushed segments.
type BuildContext struct {
	opts     BuildOptions
	analyzer *analysis.Analyzer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	index       *PartialIndex
	docs        *DocStore
	seenURLs    map[uint64]struct{}
	seenContent map[uint64]struct{}
	seenSimHash map[uint64]struct{}
	segments    []string
	report      BuildReport
}

func NewBuildContext(opts BuildOptions, analyzer *analysis.Analyzer, logger *slog.Logger, m *metrics.Metrics) *BuildContext {
	opts.setDefaults()
	return &BuildContext{
		opts:        opts,
		analyzer:    analyzer,
		logger:      logger,
		metrics:     m,
		index:       NewPartialIndex(),
		docs:        NewDocStore(),
		seenURLs:    map[uint64]struct{}{},
		seenContent: map[uint64]struct{}{},
		seenSimHash: map[uint64]struct{}{},
		report:      BuildReport{Rejected: map[string]int{}},
	}
}

// preparedDoc is everything about a page that can be computed without the
// shared build state.
type preparedDoc struct {
	entry      parser.Entry
	url        string
	urlKey     uint64
	contentKey uint64
	simKey     uint64
	hasContent bool
	thin       bool
	counts     map[string]int
	length     float64
	err        error
}

func (bc *BuildContext) prepare(entry parser.Entry) (doc preparedDoc) {
	doc.entry = entry
	defer func() {
		if r := recover(); r != nil {
			doc.err = fmt.Errorf("processing %s/%s: %v", entry.Subdomain, entry.File, r)
		}
	}()

	raw, err := entry.Load()
	if err != nil {
		doc.err = err
		return doc
	}
	doc.url = raw.URL
	doc.urlKey = parser.URLKey(raw.URL)
	doc.contentKey = parser.ContentKey(raw.Content)

	page := parser.ParsePage(raw.Content)
	doc.hasContent = page.HasContent()
	if !doc.hasContent {
		return doc
	}
	doc.thin = page.Thin()
	if doc.thin {
		return doc
	}
	if bc.opts.NearDuplicates {
		doc.simKey = parser.SimHash(page.Text)
	}

	tokens := bc.analyzer.Tokenize(page.Phrases()...)
	doc.counts = analysis.Count(bc.analyzer.Terms(tokens))
	doc.length = analysis.VectorLength(analysis.Weigh(tokens))
	return doc
}

// admit runs the order-dependent checks and accumulates an accepted page.
// It returns the rejection reason, or "" when the page was indexed.
func (bc *BuildContext) admit(doc preparedDoc) string {
	switch {
	case doc.err != nil:
		bc.logger.Warn("skipping unreadable page", "subdomain", doc.entry.Subdomain, "file", doc.entry.File, "error", doc.err)
		return RejectUnreadable
	case !doc.hasContent:
		return RejectNoContent
	}

	if _, ok := bc.seenURLs[doc.urlKey]; ok {
		return RejectDuplicateURL
	}
	bc.seenURLs[doc.urlKey] = struct{}{}
	if _, ok := bc.seenContent[doc.contentKey]; ok {
		return RejectDuplicate
	}
	bc.seenContent[doc.contentKey] = struct{}{}

	if doc.thin {
		return RejectThin
	}
	if bc.opts.NearDuplicates {
		if _, ok := bc.seenSimHash[doc.simKey]; ok {
			return RejectNearDup
		}
		bc.seenSimHash[doc.simKey] = struct{}{}
	}

	docID := bc.docs.Add(DocMeta{
		Subdomain: doc.entry.Subdomain,
		File:      doc.entry.File,
		URL:       parser.Defrag(doc.url),
		Length:    doc.length,
	})
	terms := make([]string, 0, len(doc.counts))
	for term := range doc.counts {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		bc.index.Add(term, Posting{DocID: docID, TF: doc.counts[term]})
	}
	return ""
}

// Process runs one page through the whole pipeline and flushes the in-memory
// index when it outgrows the budget.
func (bc *BuildContext) Process(entry parser.Entry) error {
	return bc.accept(bc.prepare(entry))
}

func (bc *BuildContext) accept(doc preparedDoc) error {
	bc.report.Seen++
	if reason := bc.admit(doc); reason != "" {
		bc.report.Rejected[reason]++
		bc.metrics.DocRejected(reason)
		if reason != RejectUnreadable {
			bc.logger.Debug("page rejected", "reason", reason, "subdomain", doc.entry.Subdomain, "file", doc.entry.File)
		}
		return nil
	}
	bc.report.Indexed++
	bc.metrics.DocIndexed()

	if bc.index.Size() > bc.opts.FlushBytes {
		return bc.Flush()
	}
	return nil
}

// Flush writes the in-memory index as a new segment and empties it. Flushing
// an empty index is a no-op.
func (bc *BuildContext) Flush() error {
	if bc.index.Empty() {
		return nil
	}
	if err := sys.EnsureDir(bc.opts.ScratchDir); err != nil {
		return fmt.Errorf("creating scratch dir: %w", err)
	}

	path := filepath.Join(bc.opts.ScratchDir, fmt.Sprintf("segment-%05d.bin", len(bc.segments)))
	if err := WriteSegment(path, bc.index); err != nil {
		return err
	}
	bc.logger.Info("segment flushed",
		"path", path, "terms", bc.index.Terms(), "postings", bc.index.Postings(),
		"approx_bytes", bc.index.Size(), "docs", bc.docs.Len())
	sys.LogMemoryUsage(bc.logger)

	bc.segments = append(bc.segments, path)
	bc.report.Segments++
	bc.metrics.SegmentFlushed()
	bc.index.Reset()
	return nil
}

// Build consumes the corpus. Pages are loaded and parsed by a worker pool one
// batch at a time; acceptance and id assignment follow corpus order, so the
// result does not depend on the number of workers.
func (bc *BuildContext) Build(ctx context.Context, producer stream.Producer[parser.Entry]) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := stream.Take(producer, bc.opts.Batch)
		if len(batch) == 0 {
			break
		}

		prepared := make([]preparedDoc, len(batch))
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(bc.opts.Workers)
		for i, entry := range batch {
			g.Go(func() error {
				prepared[i] = bc.prepare(entry)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, doc := range prepared {
			if err := bc.accept(doc); err != nil {
				return err
			}
		}
		bc.logger.Debug("batch processed", "seen", bc.report.Seen, "indexed", bc.report.Indexed)

		if len(batch) < bc.opts.Batch {
			break
		}
	}
	return bc.Flush()
}

func (bc *BuildContext) Segments() []string {
	return bc.segments
}

func (bc *BuildContext) Docs() *DocStore {
	return bc.docs
}

func (bc *BuildContext) Report() BuildReport {
	return bc.report
}
