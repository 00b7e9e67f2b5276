package parser

import (
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/mfonda/simhash"
)

// Defrag drops the fragment of a URL; pages differing only by fragment are the
// same page.
func Defrag(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '#'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func URLKey(rawURL string) uint64 {
	return xxhash.Sum64String(Defrag(rawURL))
}

func ContentKey(content string) uint64 {
	return xxhash.Sum64String(content)
}

// SimHash fingerprints the words of a text; near-identical texts share a
// fingerprint far more often than exact hashes do.
func SimHash(text string) uint64 {
	return simhash.Simhash(simhash.NewWordFeatureSet([]byte(strings.ToLower(text))))
}
