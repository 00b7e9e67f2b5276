package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/segmentio/encoding/json"
)

var ErrMalformedDoc = errors.New("malformed page record")

// RawDoc is one crawled page as stored by the crawler.
type RawDoc struct {
	URL      string `json:"url"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Entry locates one page of the corpus. Raw is set for in-memory corpora;
// otherwise the record is read from Path.
type Entry struct {
	Subdomain string
	File      string
	Path      string
	Raw       *RawDoc
}

// ReadFiles lists <srcDir>/<subdomain>/<file> in sorted order. The order fixes
// document ids, so two builds over the same corpus assign the same ids.
func ReadFiles(srcDir string) ([]Entry, error) {
	entries := []Entry{}

	dirs, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus dir %s: %w", srcDir, err)
	}

	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(srcDir, dir.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading subdomain dir %s: %w", dir.Name(), err)
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			entries = append(entries, Entry{
				Subdomain: dir.Name(),
				File:      strings.TrimSuffix(file.Name(), ".json"),
				Path:      filepath.Join(srcDir, dir.Name(), file.Name()),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Subdomain != entries[j].Subdomain {
			return entries[i].Subdomain < entries[j].Subdomain
		}
		return entries[i].File < entries[j].File
	})
	return entries, nil
}

func ReadRawDoc(file string) (RawDoc, error) {
	var rawDoc RawDoc

	b, err := os.ReadFile(file)
	if err != nil {
		return rawDoc, fmt.Errorf("reading %s: %w", file, err)
	}

	if err := json.Unmarshal(b, &rawDoc); err != nil {
		return rawDoc, fmt.Errorf("%w: %s: %v", ErrMalformedDoc, file, err)
	}
	if rawDoc.URL == "" {
		return rawDoc, fmt.Errorf("%w: %s: missing url", ErrMalformedDoc, file)
	}

	return rawDoc, nil
}

func (e Entry) Load() (RawDoc, error) {
	if e.Raw != nil {
		if e.Raw.URL == "" {
			return *e.Raw, fmt.Errorf("%w: %s/%s: missing url", ErrMalformedDoc, e.Subdomain, e.File)
		}
		return *e.Raw, nil
	}
	return ReadRawDoc(e.Path)
}

func WriteRawDoc(file string, rawDoc RawDoc) error {
	b, err := json.Marshal(rawDoc)
	if err != nil {
		return err
	}
	return os.WriteFile(file, b, 0644)
}
