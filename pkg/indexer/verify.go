package indexer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"webindex/pkg/utils/binary"
)

type countingReader struct {
	r *bufio.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ScanIndex calls fn for every record of the final index in file order with
// the offset the record starts at.
func ScanIndex(path string, fn func(offset int64, list ScoredList) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	cr := &countingReader{r: bufio.NewReader(f)}
	br := binary.NewByteReader(cr)
	for {
		offset := cr.n
		list, err := ReadScoredList(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: record at %d: %v", ErrIndexCorrupt, offset, err)
		}
		if err := fn(offset, list); err != nil {
			return err
		}
	}
}

// VerifyIndex checks the invariants tying the index files together: terms in
// strictly increasing order, each offset pointing at its own term, postings in
// score order without duplicate documents, and every document known.
func VerifyIndex(dir string) error {
	paths := PathsIn(dir)
	offsets, err := LoadOffsetTable(paths.Offsets)
	if err != nil {
		return err
	}
	docs, err := LoadDocStore(paths.Docs)
	if err != nil {
		return err
	}

	seen := 0
	lastTerm := ""
	err = ScanIndex(paths.Index, func(offset int64, list ScoredList) error {
		if seen > 0 && list.Term <= lastTerm {
			return fmt.Errorf("%w: term %q after %q", ErrIndexCorrupt, list.Term, lastTerm)
		}
		lastTerm = list.Term
		seen++

		if want, ok := offsets[list.Term]; !ok || want != offset {
			return fmt.Errorf("%w: term %q at %d, offset table says %d", ErrIndexCorrupt, list.Term, offset, want)
		}
		if !list.Sorted() {
			return fmt.Errorf("%w: postings of %q out of order", ErrIndexCorrupt, list.Term)
		}
		ids := make(map[int]struct{}, len(list.Postings))
		for _, p := range list.Postings {
			if _, dup := ids[p.DocID]; dup {
				return fmt.Errorf("%w: duplicate doc %d for %q", ErrIndexCorrupt, p.DocID, list.Term)
			}
			ids[p.DocID] = struct{}{}
			if _, ok := docs.Get(p.DocID); !ok {
				return fmt.Errorf("%w: unknown doc %d for %q", ErrIndexCorrupt, p.DocID, list.Term)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if seen != len(offsets) {
		return fmt.Errorf("%w: %d records, %d offsets", ErrIndexCorrupt, seen, len(offsets))
	}
	return nil
}
