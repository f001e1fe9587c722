// Package catalog resolves free-text product mentions against the canonical
// product catalog held in the search index.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
)

// DefaultTopK bounds fuzzy results for the conversational flow; bulk
// callers typically ask for more.
const DefaultTopK = 5

// ProductSource supplies the deduplicated set of canonical product names.
type ProductSource interface {
	AllProductNames(ctx context.Context) ([]string, error)
}

// Matcher resolves a mention to one or more canonical product names.
type Matcher struct {
	source ProductSource
	logger *zap.Logger
}

func NewMatcher(source ProductSource, logger *zap.Logger) *Matcher {
	return &Matcher{source: source, logger: logger}
}

// Match resolves mention against the catalog. An exact catalog hit, tried
// against the raw mention and its suffix-stripped forms in order,
// short-circuits to a singleton. Otherwise the topK most similar names are
// returned by descending edit-distance similarity, catalog order breaking
// ties.
func (m *Matcher) Match(ctx context.Context, mention string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	products, err := m.source.AllProductNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}

	for _, candidate := range []string{mention, stripSuffix(mention, "保险"), stripSuffix(mention, "险")} {
		for _, product := range products {
			if product == candidate {
				return []string{product}, nil
			}
		}
	}

	type scored struct {
		name       string
		similarity float64
	}
	ranked := make([]scored, 0, len(products))
	for _, product := range products {
		ranked = append(ranked, scored{name: product, similarity: Similarity(mention, product)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	matches := make([]string, 0, topK)
	for _, entry := range ranked[:topK] {
		matches = append(matches, entry.name)
	}

	m.logger.Debug("Fuzzy product match",
		zap.String("mention", mention),
		zap.Int("catalog_size", len(products)),
		zap.Strings("matches", matches))
	return matches, nil
}

// Similarity is edit-distance similarity over runes:
// 1 - dist/max(len(a), len(b)), 0 when both strings are empty.
func Similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(maxLen)
}

// stripSuffix drops the final suffix-delimited segment of a mention, so
// "平安福保险" becomes "平安福". Mentions without the suffix reduce to "".
func stripSuffix(mention, suffix string) string {
	parts := strings.Split(mention, suffix)
	return strings.Join(parts[:len(parts)-1], "")
}
