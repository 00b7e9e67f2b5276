package analysis

import (
	"fmt"
	"sort"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
	"github.com/kljensen/snowball/english"
	"github.com/surgebase/porter2"
)

const DefaultStemmer = "porter"

type Stemmer interface {
	Stem(word string) string
}

type StemmerFunc func(word string) string

func (f StemmerFunc) Stem(word string) string {
	return f(word)
}

var supportedStemmers = map[string]func() Stemmer{
	"porter": func() Stemmer {
		return StemmerFunc(porterstemmer.StemString)
	},
	"porter2": func() Stemmer {
		return StemmerFunc(porter2.Stem)
	},
	"snowball": func() Stemmer {
		return StemmerFunc(func(word string) string {
			return english.Stem(word, false)
		})
	},
	"none": func() Stemmer {
		return StemmerFunc(func(word string) string {
			return word
		})
	},
}

// RegisterStemmer makes a stemmer available by name. Index and query must use
// the same name, so the name is persisted alongside the index.
func RegisterStemmer(name string, fn func() Stemmer) {
	supportedStemmers[name] = fn
}

func LookupStemmer(name string) (Stemmer, error) {
	if name == "" {
		name = DefaultStemmer
	}
	if fn, ok := supportedStemmers[name]; ok {
		return fn(), nil
	}
	return nil, fmt.Errorf("unsupported stemmer %q (have %v)", name, StemmerNames())
}

func StemmerNames() []string {
	names := make([]string, 0, len(supportedStemmers))
	for name := range supportedStemmers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
