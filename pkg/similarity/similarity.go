// Package similarity provides text similarity and clustering utilities.
package similarity

import "math"

// JaccardSimilarity calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical); 0 when either set is empty.
func JaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// TermFrequencies counts occurrences of each token.
func TermFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// CosineTF calculates the cosine similarity of two token sequences using raw
// term-frequency vectors. Returns 0 when either side is empty.
func CosineTF(a, b []string) float64 {
	return CosineFrequencies(TermFrequencies(a), TermFrequencies(b))
}

// CosineFrequencies is CosineTF over precomputed frequency maps.
func CosineFrequencies(tfA, tfB map[string]int) float64 {
	if len(tfA) == 0 || len(tfB) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for term, ca := range tfA {
		normA += float64(ca * ca)
		if cb, ok := tfB[term]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range tfB {
		normB += float64(cb * cb)
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against float drift above 1 for identical vectors.
	return math.Min(1.0, math.Max(0.0, sim))
}
