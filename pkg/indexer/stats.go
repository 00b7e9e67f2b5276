package indexer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/segmentio/encoding/json"
)

const (
	IndexFile  = "term_list"
	OffsetFile = "term_pos.json"
	DocFile    = "doc_meta.json"
	StatsFile  = "term_stats.json"
)

type IndexPaths struct {
	Index   string
	Offsets string
	Docs    string
	Stats   string
}

func PathsIn(dir string) IndexPaths {
	return IndexPaths{
		Index:   filepath.Join(dir, IndexFile),
		Offsets: filepath.Join(dir, OffsetFile),
		Docs:    filepath.Join(dir, DocFile),
		Stats:   filepath.Join(dir, StatsFile),
	}
}

// DocMeta describes one indexed page. Length is the euclidean length of the
// page's sublinear unigram weight vector.
type DocMeta struct {
	Subdomain string  `json:"subdomain"`
	File      string  `json:"file"`
	URL       string  `json:"url"`
	Length    float64 `json:"length"`
}

// DocStore maps dense document ids to their metadata.
type DocStore struct {
	docs []DocMeta
}

func NewDocStore() *DocStore {
	return &DocStore{}
}

// Add records the next document and returns its id.
func (s *DocStore) Add(meta DocMeta) int {
	s.docs = append(s.docs, meta)
	return len(s.docs) - 1
}

func (s *DocStore) Get(docID int) (DocMeta, bool) {
	if docID < 0 || docID >= len(s.docs) {
		return DocMeta{}, false
	}
	return s.docs[docID], true
}

func (s *DocStore) Len() int {
	return len(s.docs)
}

// Save writes the store as a JSON object keyed by the decimal doc id.
func (s *DocStore) Save(path string) error {
	return writeJSONFile(path, func(w *jsonObjectWriter) error {
		for id, meta := range s.docs {
			if err := w.Entry(strconv.Itoa(id), meta); err != nil {
				return err
			}
		}
		return nil
	})
}

func LoadDocStore(path string) (*DocStore, error) {
	raw := map[string]DocMeta{}
	if err := readJSONFile(path, &raw); err != nil {
		return nil, err
	}

	docs := make([]DocMeta, len(raw))
	for key, meta := range raw {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 || id >= len(raw) {
			return nil, fmt.Errorf("%w: document id %q is not dense", ErrIndexCorrupt, key)
		}
		docs[id] = meta
	}
	return &DocStore{docs: docs}, nil
}

// IndexStats is the summary persisted next to the index. Stemmer must be used
// again at query time.
type IndexStats struct {
	Docs           int    `json:"docs"`
	Terms          int    `json:"terms"`
	Postings       int    `json:"postings"`
	Segments       int    `json:"segments"`
	Stemmer        string `json:"stemmer"`
	NGramSeparator string `json:"ngram_separator"`
}

func (s IndexStats) Save(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func LoadIndexStats(path string) (IndexStats, error) {
	var stats IndexStats
	err := readJSONFile(path, &stats)
	return stats, err
}

// OffsetTable maps a term to the byte offset of its record in the index file.
type OffsetTable map[string]int64

func LoadOffsetTable(path string) (OffsetTable, error) {
	table := OffsetTable{}
	if err := readJSONFile(path, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// SortedTerms returns the vocabulary in index order.
func (t OffsetTable) SortedTerms() []string {
	terms := make([]string, 0, len(t))
	for term := range t {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// jsonObjectWriter streams a JSON object whose keys are written in the order
// given, so output bytes depend only on the entries.
type jsonObjectWriter struct {
	w     *bufio.Writer
	count int
}

func (w *jsonObjectWriter) Entry(key string, value any) error {
	if w.count > 0 {
		if err := w.w.WriteByte(','); err != nil {
			return err
		}
	}
	w.count++

	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(k); err != nil {
		return err
	}
	if err := w.w.WriteByte(':'); err != nil {
		return err
	}
	_, err = w.w.Write(v)
	return err
}

func newJSONObjectWriter(w io.Writer) (*jsonObjectWriter, error) {
	bw := bufio.NewWriter(w)
	if err := bw.WriteByte('{'); err != nil {
		return nil, err
	}
	return &jsonObjectWriter{w: bw}, nil
}

func (w *jsonObjectWriter) Close() error {
	if err := w.w.WriteByte('}'); err != nil {
		return err
	}
	return w.w.Flush()
}

func writeJSONFile(path string, fill func(w *jsonObjectWriter) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w, err := newJSONObjectWriter(f)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := fill(w); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func readJSONFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrIndexCorrupt, path, err)
	}
	return nil
}
