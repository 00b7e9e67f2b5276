// Package analysis turns text into index terms. Indexing and querying must go
// through the same Analyzer: a term normalized differently on either side can
// never be retrieved.
package analysis

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// NGramSeparator joins the stemmed words of a bigram or trigram. Single tokens
// never contain it, so n-grams and unigrams share one term space safely.
const NGramSeparator = " "

const stemCacheSize = 1 << 16

var wordPattern = regexp.MustCompile(`[a-z0-9:']+`)

type Analyzer struct {
	name    string
	stemmer Stemmer
	cache   *lru.Cache[string, string]
}

func NewAnalyzer(stemmerName string) (*Analyzer, error) {
	stemmer, err := LookupStemmer(stemmerName)
	if err != nil {
		return nil, err
	}
	if stemmerName == "" {
		stemmerName = DefaultStemmer
	}
	return NewAnalyzerWithStemmer(stemmerName, stemmer), nil
}

func NewAnalyzerWithStemmer(name string, stemmer Stemmer) *Analyzer {
	cache, _ := lru.New[string, string](stemCacheSize)
	return &Analyzer{
		name:    name,
		stemmer: stemmer,
		cache:   cache,
	}
}

func (a *Analyzer) StemmerName() string {
	return a.name
}

// Tokenize lower-cases each phrase and stems every maximal run of
// alphanumerics, colons and apostrophes, keeping input order.
func (a *Analyzer) Tokenize(phrases ...string) []string {
	tokens := []string{}
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		for _, word := range wordPattern.FindAllString(phrase, -1) {
			tokens = append(tokens, a.stem(word))
		}
	}
	return tokens
}

// Terms expands a token sequence into unigrams followed by bigrams and trigrams.
func (a *Analyzer) Terms(tokens []string) []string {
	terms := make([]string, 0, len(tokens)*3)
	terms = append(terms, tokens...)
	terms = append(terms, NGrams(tokens, 2)...)
	terms = append(terms, NGrams(tokens, 3)...)
	return terms
}

func (a *Analyzer) stem(word string) string {
	if stemmed, ok := a.cache.Get(word); ok {
		return stemmed
	}
	stemmed := a.stemmer.Stem(word)
	a.cache.Add(word, stemmed)
	return stemmed
}

// NGrams returns every contiguous window of n tokens joined by NGramSeparator.
func NGrams(tokens []string, n int) []string {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	grams := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, strings.Join(tokens[i:i+n], NGramSeparator))
	}
	return grams
}
