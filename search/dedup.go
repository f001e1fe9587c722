package search

import (
	"strings"
)

const maxKeywords = 10

// keywordSet dedupes the first 10 lower-cased tokens of a passage, with
// punctuation stripped and single-character tokens ignored. Repeats within
// the window shrink the set; later tokens are never consulted.
func keywordSet(content string) map[string]struct{} {
	content = strings.ToLower(content)
	content = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`,.!?;:'"()[]{}\/<>*|=+-_~`+"`"+`@#$%^&`, r) {
			return ' '
		}
		return r
	}, content)

	words := strings.Fields(content)
	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}

	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		if len([]rune(word)) <= 1 {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}

// keywordSimilarity is the Jaccard similarity of two keyword sets.
func keywordSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for word := range a {
		if _, ok := b[word]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// lengthDiff is the relative length difference of two passages.
func lengthDiff(a, b string) float64 {
	la, lb := len(a), len(b)
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest < 1 {
		longest = 1
	}
	return float64(diff) / float64(longest)
}

// isNearDuplicate reports whether two passages are near-duplicates: high
// keyword overlap combined with similar length.
func isNearDuplicate(a, b string, simThreshold, lengthThreshold float64) bool {
	return keywordSimilarity(keywordSet(a), keywordSet(b)) > simThreshold &&
		lengthDiff(a, b) < lengthThreshold
}

// dedupeChunks greedily filters near-duplicate passages, keeping the input's
// descending-score order, until size passages are accepted.
func dedupeChunks(chunks []StructuredChunk, size int, simThreshold, lengthThreshold float64) []StructuredChunk {
	if size <= 0 {
		return nil
	}

	accepted := make([]StructuredChunk, 0, size)
	acceptedKeywords := make([]map[string]struct{}, 0, size)

	for _, chunk := range chunks {
		keywords := keywordSet(chunk.ChunkText)
		duplicate := false
		for i, existing := range accepted {
			if keywordSimilarity(keywords, acceptedKeywords[i]) > simThreshold &&
				lengthDiff(chunk.ChunkText, existing.ChunkText) < lengthThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		accepted = append(accepted, chunk)
		acceptedKeywords = append(acceptedKeywords, keywords)
		if len(accepted) >= size {
			break
		}
	}
	return accepted
}
