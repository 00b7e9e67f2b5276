package indexer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"webindex/pkg/utils/binary"
)

// termBytes approximates the map entry and slice header of a new term.
const termBytes = 48

// PartialIndex is the in-memory inverted index of one build segment. Its size
// is an explicit running estimate, updated on every insert.
type PartialIndex struct {
	lists    map[string][]Posting
	size     int64
	postings int
}

func NewPartialIndex() *PartialIndex {
	return &PartialIndex{
		lists: map[string][]Posting{},
	}
}

// Add appends a posting. Callers add documents in increasing DocID order, so
// every list stays DocID ordered.
func (p *PartialIndex) Add(term string, posting Posting) {
	list, ok := p.lists[term]
	if !ok {
		p.size += int64(len(term) + termBytes)
	}
	p.lists[term] = append(list, posting)
	p.size += postingBytes
	p.postings++
}

func (p *PartialIndex) Size() int64 {
	return p.size
}

func (p *PartialIndex) Terms() int {
	return len(p.lists)
}

func (p *PartialIndex) Postings() int {
	return p.postings
}

func (p *PartialIndex) Empty() bool {
	return len(p.lists) == 0
}

func (p *PartialIndex) Reset() {
	p.lists = map[string][]Posting{}
	p.size = 0
	p.postings = 0
}

func (p *PartialIndex) SortedList() []InvertedList {
	terms := make([]string, 0, len(p.lists))
	for term := range p.lists {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	list := make([]InvertedList, 0, len(terms))
	for _, term := range terms {
		list = append(list, InvertedList{
			Term:     term,
			Postings: p.lists[term],
		})
	}
	return list
}

// WriteSegment writes the index in term order to path. The file appears under
// its final name only once completely written.
func WriteSegment(path string, index *PartialIndex) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating segment %s: %w", path, err)
	}

	bw := binary.NewBufferedByteWriter(f)
	for _, list := range index.SortedList() {
		if err := WriteInvertedList(bw, list); err != nil {
			bw.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("writing segment %s: %w", path, err)
		}
	}
	if err := bw.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing segment %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming segment %s: %w", path, err)
	}
	return nil
}

// SegmentReader streams the inverted lists of one segment in term order.
type SegmentReader struct {
	path string
	f    *os.File
	br   *binary.ByteReader
}

func OpenSegment(path string) (*SegmentReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment: %w", err)
	}
	return &SegmentReader{
		path: path,
		f:    f,
		br:   binary.NewBufferedByteReader(f),
	}, nil
}

// Next returns io.EOF after the last list.
func (r *SegmentReader) Next() (InvertedList, error) {
	list, err := ReadInvertedList(r.br)
	if err == io.EOF {
		return list, io.EOF
	}
	if err != nil {
		return list, fmt.Errorf("reading segment %s: %w", r.path, err)
	}
	return list, nil
}

func (r *SegmentReader) Path() string {
	return r.path
}

func (r *SegmentReader) Close() error {
	return r.f.Close()
}

// ReadSegment loads a whole segment; meant for tests and small segments.
func ReadSegment(path string) ([]InvertedList, error) {
	r, err := OpenSegment(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	lists := []InvertedList{}
	for {
		list, err := r.Next()
		if err == io.EOF {
			return lists, nil
		}
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
}
