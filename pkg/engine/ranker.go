package engine

import (
	"cmp"
	"context"
	"math"
	"slices"
	"webindex/pkg/indexer"
)

// RankOptions are the early termination thresholds of the scorer. Terms are
// scored in descending idf order until one falls below IDFFloor; within a
// term, once more than ScanLimit postings were examined, scanning stops at the
// first posting whose raw tf is below MinRawTF.
type RankOptions struct {
	IDFFloor  float64
	ScanLimit int
	MinRawTF  float64
}

func DefaultRankOptions() RankOptions {
	return RankOptions{
		IDFFloor:  1.0,
		ScanLimit: 2500,
		MinRawTF:  2.0,
	}
}

// QueryTerm is one query term found in the index.
type QueryTerm struct {
	Term   string
	Weight float64
	List   indexer.ScoredList
}

type ScoredDoc struct {
	DocID int
	Score float64
}

type Ranker struct {
	opts     RankOptions
	docCount int
	docLen   func(docID int) float64
}

func NewRanker(opts RankOptions, docCount int, docLen func(docID int) float64) *Ranker {
	return &Ranker{
		opts:     opts,
		docCount: docCount,
		docLen:   docLen,
	}
}

func (r *Ranker) IDF(df int) float64 {
	if df <= 0 || r.docCount <= 0 {
		return 0
	}
	return math.Log(float64(r.docCount) / float64(df))
}

// Rank scores documents by cosine similarity with the query. When ctx ends
// during scoring, the scores accumulated so far are ranked; truncated reports
// whether that happened.
func (r *Ranker) Rank(ctx context.Context, terms []QueryTerm) (docs []ScoredDoc, truncated bool) {
	type axis struct {
		term   QueryTerm
		idf    float64
		weight float64
	}

	axes := make([]axis, 0, len(terms))
	queryLenSq := 0.0
	for _, t := range terms {
		idf := r.IDF(t.List.DocFreq())
		w := t.Weight * idf
		queryLenSq += w * w
		axes = append(axes, axis{term: t, idf: idf, weight: w})
	}
	queryLen := math.Sqrt(queryLenSq)
	if queryLen == 0 {
		return nil, false
	}

	slices.SortFunc(axes, func(a, b axis) int {
		if c := cmp.Compare(b.idf, a.idf); c != 0 {
			return c
		}
		return cmp.Compare(a.term.Term, b.term.Term)
	})

	scores := map[int]float64{}
scoring:
	for _, a := range axes {
		if a.idf < r.opts.IDFFloor {
			break
		}
		for i, p := range a.term.List.Postings {
			if i%256 == 0 && ctx.Err() != nil {
				truncated = true
				break scoring
			}
			if i > r.opts.ScanLimit && float64(p.TF) < r.opts.MinRawTF {
				break
			}
			scores[p.DocID] += a.weight * p.TFIDF
		}
	}

	docs = make([]ScoredDoc, 0, len(scores))
	for docID, dot := range scores {
		docLen := r.docLen(docID)
		if dot <= 0 || docLen <= 0 {
			continue
		}
		docs = append(docs, ScoredDoc{
			DocID: docID,
			Score: dot / (queryLen * docLen),
		})
	}
	slices.SortFunc(docs, func(a, b ScoredDoc) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
	return docs, truncated
}
