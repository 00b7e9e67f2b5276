package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"webindex/pkg/indexer"
	"webindex/pkg/metrics"
	"webindex/pkg/utils/binary"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

var (
	ErrCacheSetOperationNotSupported = errors.New("cache set operation is not supported")
	ErrCacheClosed                   = errors.New("cache closed")
)

// IndexListCache looks up the scored posting list of a term. A term missing
// from the index is reported through found, never through err.
type IndexListCache interface {
	Get(term string) (list indexer.ScoredList, found bool, err error)
	Set(term string, list indexer.ScoredList) error
}

var _ IndexListCache = (*MemoryIndexListCache)(nil)
var _ IndexListCache = (*DiskIndexListCache)(nil)

type MemoryIndexListCache struct {
	cache   *lru.Cache[string, indexer.ScoredList]
	src     IndexListCache
	metrics *metrics.Metrics
}

func NewMemoryIndexListCache(size int, src IndexListCache, m *metrics.Metrics) (*MemoryIndexListCache, error) {
	cache, err := lru.New[string, indexer.ScoredList](size)
	if err != nil {
		return nil, err
	}
	return &MemoryIndexListCache{
		cache:   cache,
		src:     src,
		metrics: m,
	}, nil
}

func (mc *MemoryIndexListCache) Get(term string) (indexer.ScoredList, bool, error) {
	if list, ok := mc.cache.Get(term); ok {
		mc.metrics.CacheLookup(true)
		return list, true, nil
	}
	mc.metrics.CacheLookup(false)
	if mc.src == nil {
		return indexer.ScoredList{}, false, nil
	}

	list, found, err := mc.src.Get(term)
	if err != nil || !found {
		return list, found, err
	}
	mc.Set(term, list)
	return list, true, nil
}

func (mc *MemoryIndexListCache) Set(term string, list indexer.ScoredList) error {
	_ = mc.cache.Add(term, list)
	return nil
}

func (mc *MemoryIndexListCache) Len() int {
	return mc.cache.Len()
}

// DiskIndexListCache reads posting lists from the final index. Each worker
// owns a file handle and so its own cursor; concurrent requests for the same
// term share one read.
type DiskIndexListCache struct {
	accessCh chan termRequest
	done     chan struct{}
	stop     sync.Once
	group    singleflight.Group
	termPos  indexer.OffsetTable
	size     int64
}

type termRequest struct {
	term     string
	pos      int64
	resultCh chan<- termResponse
}

type termResponse struct {
	result indexer.ScoredList
	err    error
}

func NewDiskIndexListCache(filename string, workers int, termPos indexer.OffsetTable) (*DiskIndexListCache, error) {
	if workers <= 0 {
		workers = 1
	}
	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	var files []*os.File
	for range workers {
		f, err := os.Open(filename)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return nil, fmt.Errorf("opening index: %w", err)
		}
		files = append(files, f)
	}

	dc := &DiskIndexListCache{
		accessCh: make(chan termRequest, workers),
		done:     make(chan struct{}),
		termPos:  termPos,
		size:     info.Size(),
	}
	for _, f := range files {
		go func() {
			defer f.Close()
			for {
				select {
				case req := <-dc.accessCh:
					req.resultCh <- getTermFromFile(f, dc.size, req.term, req.pos)
				case <-dc.done:
					return
				}
			}
		}()
	}
	return dc, nil
}

func (dc *DiskIndexListCache) Get(term string) (indexer.ScoredList, bool, error) {
	pos, ok := dc.termPos[term]
	if !ok {
		return indexer.ScoredList{}, false, nil
	}

	v, err, _ := dc.group.Do(term, func() (any, error) {
		resultCh := make(chan termResponse, 1)
		select {
		case dc.accessCh <- termRequest{term: term, pos: pos, resultCh: resultCh}:
		case <-dc.done:
			return nil, ErrCacheClosed
		}
		select {
		case resp := <-resultCh:
			return resp.result, resp.err
		case <-dc.done:
			return nil, ErrCacheClosed
		}
	})
	if err != nil {
		return indexer.ScoredList{}, false, err
	}
	return v.(indexer.ScoredList), true, nil
}

func (dc *DiskIndexListCache) Set(term string, list indexer.ScoredList) error {
	return ErrCacheSetOperationNotSupported
}

// Close stops the readers. Lookups still queued or made afterwards fail
// with ErrCacheClosed. Close is idempotent.
func (dc *DiskIndexListCache) Close() {
	dc.stop.Do(func() { close(dc.done) })
}

func getTermFromFile(f *os.File, size int64, term string, pos int64) termResponse {
	if pos < 0 || pos >= size {
		return termResponse{
			err: fmt.Errorf("%w: offset %d of %q outside index of %d bytes", indexer.ErrIndexCorrupt, pos, term, size),
		}
	}

	br := binary.NewBufferedByteReader(io.NewSectionReader(f, pos, size-pos))
	list, err := indexer.ReadScoredList(br)
	if err != nil {
		return termResponse{
			err: fmt.Errorf("%w: reading %q at %d: %v", indexer.ErrIndexCorrupt, term, pos, err),
		}
	}
	if list.Term != term {
		return termResponse{
			err: fmt.Errorf("%w: offset %d holds %q, want %q", indexer.ErrIndexCorrupt, pos, list.Term, term),
		}
	}
	return termResponse{
		result: list,
	}
}
