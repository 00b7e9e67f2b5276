package indexer

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"webindex/pkg/utils/binary"
)

var ErrIndexCorrupt = errors.New("index corrupt")

// Posting is a build-stage entry: raw term count of one document. Postings
// are equal when their DocIDs are equal; lists are kept in DocID order.
type Posting struct {
	DocID int
	TF    int
}

// ScoredPosting is a final-index entry. Lists are kept in ByScore order.
type ScoredPosting struct {
	DocID int
	TF    int
	TFIDF float64
}

// postingBytes approximates the resident size of one posting in a list.
const postingBytes = 16

// ByDocID orders build-stage postings.
func ByDocID(p1, p2 Posting) int {
	return cmp.Compare(p1.DocID, p2.DocID)
}

// ByScore orders final postings by tf-idf, then raw tf, both descending. The
// doc id breaks remaining ties so the final index is reproducible.
func ByScore(p1, p2 ScoredPosting) int {
	if r := cmp.Compare(p2.TFIDF, p1.TFIDF); r != 0 {
		return r
	}
	if r := cmp.Compare(p2.TF, p1.TF); r != 0 {
		return r
	}
	return cmp.Compare(p1.DocID, p2.DocID)
}

// MergePostings returns the union of two DocID-ordered lists. When both lists
// hold the same document the posting from a is kept.
func MergePostings(a, b []Posting) []Posting {
	merged := make([]Posting, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch r := ByDocID(a[i], b[j]); {
		case r < 0:
			merged = append(merged, a[i])
			i++
		case r > 0:
			merged = append(merged, b[j])
			j++
		default:
			merged = append(merged, a[i])
			i++
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}

type InvertedList struct {
	Term     string
	Postings []Posting
}

type ScoredList struct {
	Term     string
	Postings []ScoredPosting
}

func (l ScoredList) DocFreq() int {
	return len(l.Postings)
}

func (l InvertedList) Sorted() bool {
	return slices.IsSortedFunc(l.Postings, ByDocID)
}

func (l ScoredList) Sorted() bool {
	return slices.IsSortedFunc(l.Postings, ByScore)
}

func WriteInvertedList(bw *binary.ByteWriter, list InvertedList) error {
	if err := bw.WriteString(list.Term); err != nil {
		return err
	}
	if err := bw.WriteInt(len(list.Postings)); err != nil {
		return err
	}
	for _, posting := range list.Postings {
		if err := bw.WriteInt(posting.DocID); err != nil {
			return err
		}
		if err := bw.WriteInt(posting.TF); err != nil {
			return err
		}
	}
	return nil
}

// ReadInvertedList returns io.EOF only when the stream ends before a record.
func ReadInvertedList(br *binary.ByteReader) (InvertedList, error) {
	var list InvertedList
	term, err := br.ReadString()
	if err != nil {
		return list, err
	}
	list.Term = term

	count, err := readCount(br)
	if err != nil {
		return list, err
	}
	list.Postings = make([]Posting, 0, count)
	for range count {
		var posting Posting
		if posting.DocID, err = br.ReadInt(); err != nil {
			return list, midRecord(err)
		}
		if posting.TF, err = br.ReadInt(); err != nil {
			return list, midRecord(err)
		}
		list.Postings = append(list.Postings, posting)
	}
	return list, nil
}

func WriteScoredList(bw *binary.ByteWriter, list ScoredList) error {
	if err := bw.WriteString(list.Term); err != nil {
		return err
	}
	if err := bw.WriteInt(len(list.Postings)); err != nil {
		return err
	}
	for _, posting := range list.Postings {
		if err := bw.WriteInt(posting.DocID); err != nil {
			return err
		}
		if err := bw.WriteInt(posting.TF); err != nil {
			return err
		}
		if err := bw.WriteFloat(posting.TFIDF); err != nil {
			return err
		}
	}
	return nil
}

func ReadScoredList(br *binary.ByteReader) (ScoredList, error) {
	var list ScoredList
	term, err := br.ReadString()
	if err != nil {
		return list, err
	}
	list.Term = term

	count, err := readCount(br)
	if err != nil {
		return list, err
	}
	list.Postings = make([]ScoredPosting, 0, count)
	for range count {
		var posting ScoredPosting
		if posting.DocID, err = br.ReadInt(); err != nil {
			return list, midRecord(err)
		}
		if posting.TF, err = br.ReadInt(); err != nil {
			return list, midRecord(err)
		}
		if posting.TFIDF, err = br.ReadFloat(); err != nil {
			return list, midRecord(err)
		}
		list.Postings = append(list.Postings, posting)
	}
	return list, nil
}

func readCount(br *binary.ByteReader) (int, error) {
	count, err := br.ReadInt()
	if err != nil {
		return 0, midRecord(err)
	}
	if count < 0 || count > binary.MaxBytesLen {
		return 0, fmt.Errorf("posting count %d: %w", count, binary.ErrInvalidLength)
	}
	return count, nil
}

func midRecord(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
