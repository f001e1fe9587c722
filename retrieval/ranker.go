// Package retrieval turns a natural-language query into a ranked,
// deduplicated set of supporting clause passages for a resolved product.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"clause-agent/config"
	apperrors "clause-agent/errors"
	"clause-agent/prompts"
	"clause-agent/search"

	"go.uber.org/zap"
)

// Document is one supporting passage. Rebuilt on every retrieval call,
// never cached across turns.
type Document struct {
	Content string `json:"content"`
}

// LLM is the completion/embedding capability the ranker consumes.
type LLM interface {
	Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the slice of the search boundary the ranker consumes.
type Searcher interface {
	SearchByVectorAndProduct(ctx context.Context, productName string, vector []float32, size int) ([]string, error)
	SearchByProductAndChunkType(ctx context.Context, productName, chunkType string, size int) ([]search.StructuredChunk, error)
}

// Ranker implements the ensemble-of-candidate-answers retrieval strategy.
type Ranker struct {
	cfg      *config.Config
	llm      LLM
	searcher Searcher
	logger   *zap.Logger
}

func NewRanker(cfg *config.Config, llm LLM, searcher Searcher, logger *zap.Logger) *Ranker {
	return &Ranker{cfg: cfg, llm: llm, searcher: searcher, logger: logger}
}

// Retrieve returns the passages grounding the answer for a known product,
// plus the extracted attribute category when one was resolved.
//
// Overview requests walk the fixed category list and need no ranking.
// Specific-attribute requests run the candidate-answer ensemble and append
// any structured record matching the extracted category; structured hits
// are authoritative and not deduplicated against the ranked set.
func (r *Ranker) Retrieve(ctx context.Context, query, productName string) ([]Document, string, error) {
	if r.isOverviewQuery(ctx, query) {
		docs, err := r.retrieveOverview(ctx, productName)
		return docs, "", err
	}

	docs, err := r.retrieveRanked(ctx, query, productName)
	if err != nil {
		return nil, "", err
	}

	chunkType := r.extractChunkType(ctx, query)
	if chunkType != "" {
		structured, err := r.searcher.SearchByProductAndChunkType(ctx, productName, chunkType, 5)
		if err != nil {
			r.logger.Warn("Structured attribute lookup failed",
				zap.String("chunk_type", chunkType),
				zap.Error(err))
		}
		for _, chunk := range structured {
			docs = append(docs, Document{Content: chunk.ChunkText})
		}
	}

	return docs, chunkType, nil
}

// retrieveOverview fetches the structured record for every overview
// category and emits it prefixed with the category label.
func (r *Ranker) retrieveOverview(ctx context.Context, productName string) ([]Document, error) {
	var docs []Document
	for _, chunkType := range overviewChunkTypes {
		chunks, err := r.searcher.SearchByProductAndChunkType(ctx, productName, chunkType, 5)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			docs = append(docs, Document{Content: chunkType + "：" + chunk.ChunkText})
		}
	}
	r.logger.Debug("Overview retrieval complete",
		zap.String("product", productName),
		zap.Int("documents", len(docs)))
	return docs, nil
}

// retrieveRanked runs the candidate-answer ensemble and merges the per-
// candidate result lists into the final top passages.
func (r *Ranker) retrieveRanked(ctx context.Context, query, productName string) ([]Document, error) {
	candidates := r.generateCandidateAnswers(ctx, query, productName)

	if len(candidates) == 0 {
		// No hypotheses; fall back to a single embedding of the raw query.
		vector, err := r.llm.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		texts, err := r.searcher.SearchByVectorAndProduct(ctx, productName, vector, r.cfg.FinalPassages)
		if err != nil {
			return nil, err
		}
		if len(texts) == 0 {
			return nil, apperrors.ErrNoClausesFound
		}
		docs := make([]Document, 0, len(texts))
		for _, text := range texts {
			docs = append(docs, Document{Content: text})
		}
		return docs, nil
	}

	scoresByCandidate := make([]map[string]float64, 0, len(candidates))
	for i, answer := range candidates {
		vector, err := r.llm.Embed(ctx, answer)
		if err != nil {
			return nil, err
		}
		texts, err := r.searcher.SearchByVectorAndProduct(ctx, productName, vector, r.cfg.CandidateSearchSize)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("Candidate retrieval",
			zap.Int("candidate", i+1),
			zap.Int("passages", len(texts)))
		scoresByCandidate = append(scoresByCandidate, positionalScores(texts))
	}

	merged := mergeCandidateScores(scoresByCandidate, r.cfg.FinalPassages)
	if len(merged) == 0 {
		return nil, apperrors.ErrNoClausesFound
	}

	docs := make([]Document, 0, len(merged))
	for _, text := range merged {
		docs = append(docs, Document{Content: text})
	}
	return docs, nil
}

// positionalScores assigns each passage a rank-position score: 1.0 for the
// first, decaying by 0.1 per position with a 0.1 floor. Rank position, not
// raw similarity, determines contribution.
func positionalScores(texts []string) map[string]float64 {
	scores := make(map[string]float64, len(texts))
	for idx, text := range texts {
		score := 1.0 - float64(idx)*0.1
		if score < 0.1 {
			score = 0.1
		}
		scores[text] = score
	}
	return scores
}

// mergeCandidateScores merges the per-candidate score sets: passages seen
// under more candidate phrasings rank first, then by best positional score.
// The result is independent of candidate order.
func mergeCandidateScores(scoresByCandidate []map[string]float64, limit int) []string {
	counts := make(map[string]int)
	maxScores := make(map[string]float64)
	for _, scores := range scoresByCandidate {
		for text, score := range scores {
			counts[text]++
			if score > maxScores[text] {
				maxScores[text] = score
			}
		}
	}

	texts := make([]string, 0, len(counts))
	for text := range counts {
		texts = append(texts, text)
	}
	sort.Slice(texts, func(i, j int) bool {
		a, b := texts[i], texts[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if maxScores[a] != maxScores[b] {
			return maxScores[a] > maxScores[b]
		}
		return a < b
	})

	if limit < len(texts) {
		texts = texts[:limit]
	}
	return texts
}

// generateCandidateAnswers asks the model for k diversified hypothetical
// answers to the query. Failures degrade to the raw-query fallback.
func (r *Ranker) generateCandidateAnswers(ctx context.Context, query, productName string) []string {
	k := r.cfg.CandidateAnswers
	if k <= 0 {
		k = 3
	}

	result, err := r.llm.Generate(ctx, prompts.Candidates(productName, query, k), prompts.CandidateSystem(), 1000, -1)
	if err != nil {
		r.logger.Warn("Candidate answer generation failed", zap.Error(err))
		return nil
	}

	var answers []string
	for _, line := range strings.Split(result, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		answers = append(answers, line)
		if len(answers) >= k {
			break
		}
	}
	return answers
}

// isOverviewQuery classifies the query as a product overview request.
// Classification failures default to the specific-attribute path.
func (r *Ranker) isOverviewQuery(ctx context.Context, query string) bool {
	result, err := r.llm.Generate(ctx, prompts.Overview(query), prompts.OverviewSystem(), 10, -1)
	if err != nil {
		r.logger.Warn("Overview classification failed", zap.Error(err))
		return false
	}
	return strings.TrimSpace(result) == "是"
}

// extractChunkType resolves the query to one of the 27 attribute
// categories, or "" when none applies.
func (r *Ranker) extractChunkType(ctx context.Context, query string) string {
	result, err := r.llm.Generate(ctx, prompts.ChunkType(chunkTypeListing(), query), prompts.ChunkTypeSystem(), 10, -1)
	if err != nil {
		r.logger.Warn("Chunk type extraction failed", zap.Error(err))
		return ""
	}
	result = strings.TrimSpace(result)
	if result == "" || result == "无" {
		return ""
	}
	label, ok := chunkTypeByNumber[result]
	if !ok {
		return ""
	}
	return label
}
