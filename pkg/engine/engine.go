package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"webindex/pkg/analysis"
	"webindex/pkg/indexer"
	"webindex/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

type Options struct {
	CacheSize int
	Workers   int
	Timeout   time.Duration
	Rank      RankOptions
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

func DefaultOptions() Options {
	return Options{
		CacheSize: 256,
		Workers:   4,
		Rank:      DefaultRankOptions(),
	}
}

type Engine struct {
	IndexPath  string
	IndexStats indexer.IndexStats
	TermPos    indexer.OffsetTable
	Docs       *indexer.DocStore
	Cache      IndexListCache

	analyzer *analysis.Analyzer
	disk     *DiskIndexListCache
	ranker   *Ranker
	vocab    []string
	opts     Options
	logger   *slog.Logger
}

// Result is one ranked page.
type Result struct {
	DocID     int
	URL       string
	Subdomain string
	File      string
	Score     float64
}

// SearchResult is the outcome of a query. MissedTerms lists query terms absent
// from the index; NoMatch tells a caller that none of them matched, which is
// the cue for a spelling fallback.
type SearchResult struct {
	Query        string
	Results      []Result
	MatchedTerms []string
	MissedTerms  []string
	Truncated    bool
	Elapsed      time.Duration
}

func (r *SearchResult) NoMatch() bool {
	return len(r.MatchedTerms) == 0 && len(r.MissedTerms) > 0
}

func (r *SearchResult) URLs() []string {
	urls := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		urls = append(urls, res.URL)
	}
	return urls
}

func NewEngine(srcDir string, opts Options) (*Engine, error) {
	paths := indexer.PathsIn(srcDir)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stats, err := indexer.LoadIndexStats(paths.Stats)
	if err != nil {
		return nil, err
	}
	if stats.NGramSeparator != "" && stats.NGramSeparator != analysis.NGramSeparator {
		return nil, fmt.Errorf("index built with n-gram separator %q, want %q", stats.NGramSeparator, analysis.NGramSeparator)
	}
	analyzer, err := analysis.NewAnalyzer(stats.Stemmer)
	if err != nil {
		return nil, err
	}
	docs, err := indexer.LoadDocStore(paths.Docs)
	if err != nil {
		return nil, err
	}
	termPos, err := indexer.LoadOffsetTable(paths.Offsets)
	if err != nil {
		return nil, err
	}

	disk, err := NewDiskIndexListCache(paths.Index, opts.Workers, termPos)
	if err != nil {
		return nil, err
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}
	memCache, err := NewMemoryIndexListCache(opts.CacheSize, disk, opts.Metrics)
	if err != nil {
		disk.Close()
		return nil, err
	}

	eg := &Engine{
		IndexPath:  paths.Index,
		IndexStats: stats,
		TermPos:    termPos,
		Docs:       docs,
		Cache:      memCache,
		analyzer:   analyzer,
		disk:       disk,
		vocab:      termPos.SortedTerms(),
		opts:       opts,
		logger:     logger,
	}
	eg.ranker = NewRanker(opts.Rank, docs.Len(), eg.docLength)

	logger.Info("engine loaded", "dir", srcDir, "docs", docs.Len(), "terms", len(termPos), "stemmer", stats.Stemmer)
	return eg, nil
}

func (eg *Engine) Close() {
	eg.disk.Close()
}

func (eg *Engine) docLength(docID int) float64 {
	meta, ok := eg.Docs.Get(docID)
	if !ok {
		return 0
	}
	return meta.Length
}

// empty string if not found
func (eg *Engine) DocURL(docID int) string {
	meta, ok := eg.Docs.Get(docID)
	if !ok {
		return ""
	}
	return meta.URL
}

// QueryWeights tokenizes a query exactly like a page and weighs its unigrams,
// bigrams and trigrams together.
func (eg *Engine) QueryWeights(query string) map[string]float64 {
	tokens := eg.analyzer.Tokenize(query)
	return analysis.Weigh(eg.analyzer.Terms(tokens))
}

// Search ranks the index against query and returns at most k results (all of
// them when k <= 0). A missing term only removes its contribution. Errors mean
// the index could not be read, typically indexer.ErrIndexCorrupt.
func (eg *Engine) Search(ctx context.Context, query string, k int) (*SearchResult, error) {
	start := time.Now()
	result := &SearchResult{Query: query}

	weights := eg.QueryWeights(query)
	if len(weights) == 0 {
		result.Elapsed = time.Since(start)
		eg.opts.Metrics.QueryDone("empty", result.Elapsed)
		return result, nil
	}

	terms := make([]string, 0, len(weights))
	for term := range weights {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	type lookup struct {
		list  indexer.ScoredList
		found bool
	}
	lookups := make([]lookup, len(terms))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(eg.opts.Workers, 1))
	for i, term := range terms {
		g.Go(func() error {
			list, found, err := eg.Cache.Get(term)
			if err != nil {
				return err
			}
			lookups[i] = lookup{list: list, found: found}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		eg.opts.Metrics.QueryDone("error", time.Since(start))
		return nil, err
	}

	queryTerms := make([]QueryTerm, 0, len(terms))
	for i, term := range terms {
		if !lookups[i].found {
			result.MissedTerms = append(result.MissedTerms, term)
			continue
		}
		result.MatchedTerms = append(result.MatchedTerms, term)
		queryTerms = append(queryTerms, QueryTerm{
			Term:   term,
			Weight: weights[term],
			List:   lookups[i].list,
		})
	}

	scoreCtx := ctx
	if eg.opts.Timeout > 0 {
		var cancel context.CancelFunc
		scoreCtx, cancel = context.WithTimeout(ctx, eg.opts.Timeout)
		defer cancel()
	}
	scored, truncated := eg.ranker.Rank(scoreCtx, queryTerms)
	if truncated {
		eg.logger.Warn("query scoring cut short", "query", query, "timeout", eg.opts.Timeout)
	}
	result.Truncated = truncated

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	for _, doc := range scored {
		meta, _ := eg.Docs.Get(doc.DocID)
		result.Results = append(result.Results, Result{
			DocID:     doc.DocID,
			URL:       meta.URL,
			Subdomain: meta.Subdomain,
			File:      meta.File,
			Score:     doc.Score,
		})
	}

	result.Elapsed = time.Since(start)
	outcome := "hit"
	if result.NoMatch() || len(result.Results) == 0 {
		outcome = "no_match"
	}
	eg.opts.Metrics.QueryDone(outcome, result.Elapsed)
	return result, nil
}

// Rank returns the urls matching query, best first. Failures are logged and
// degrade to an empty list.
func (eg *Engine) Rank(query string) []string {
	result, err := eg.Search(context.Background(), query, 0)
	if err != nil {
		eg.logger.Error("query failed", "query", query, "error", err)
		return []string{}
	}
	return result.URLs()
}

// Complete returns up to n vocabulary unigrams starting with prefix.
func (eg *Engine) Complete(prefix string, n int) []string {
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return nil
	}
	i, _ := slices.BinarySearch(eg.vocab, prefix)
	out := []string{}
	for ; i < len(eg.vocab) && len(out) < n; i++ {
		term := eg.vocab[i]
		if !strings.HasPrefix(term, prefix) {
			break
		}
		if !strings.Contains(term, analysis.NGramSeparator) {
			out = append(out, term)
		}
	}
	return out
}
