package analysis

import (
	"math"
	"sort"
)

// Count returns raw term frequencies. Terms that do not occur are absent.
func Count(terms []string) map[string]int {
	counts := make(map[string]int, len(terms))
	for _, term := range terms {
		counts[term]++
	}
	return counts
}

// Sublinear is the log-scaled term frequency 1 + ln(count).
func Sublinear(count int) float64 {
	if count <= 0 {
		return 0
	}
	return 1 + math.Log(float64(count))
}

func Weigh(terms []string) map[string]float64 {
	counts := Count(terms)
	weights := make(map[string]float64, len(counts))
	for term, count := range counts {
		weights[term] = Sublinear(count)
	}
	return weights
}

// VectorLength is the euclidean norm of a sparse weight vector. Terms are
// summed in sorted order so the result is reproducible bit for bit.
func VectorLength(weights map[string]float64) float64 {
	terms := make([]string, 0, len(weights))
	for term := range weights {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	sum := 0.0
	for _, term := range terms {
		w := weights[term]
		sum += w * w
	}
	return math.Sqrt(sum)
}
