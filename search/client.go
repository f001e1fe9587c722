package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clause-agent/config"
	apperrors "clause-agent/errors"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// StructuredChunk is one structured-attribute record for a product.
type StructuredChunk struct {
	ChunkText   string  `json:"chunk_text"`
	ProductName string  `json:"product_name"`
	ChunkType   string  `json:"chunk_type"`
	ChunkID     int     `json:"chunk_id"`
	Score       float64 `json:"-"`
}

// Client speaks to the Elasticsearch cluster holding the clause, structured
// and term indices. The cluster is read-mostly external state; nothing here
// mutates application data.
type Client struct {
	cfg        *config.Config
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	termCache  *lru.Cache
}

func NewClient(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	cacheSize := cfg.TermCacheSize
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create term cache: %w", err)
	}

	return &Client{
		cfg:        cfg,
		baseURL:    fmt.Sprintf("http://%s:%d", cfg.ESHost, cfg.ESPort),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		termCache:  cache,
	}, nil
}

type esHit struct {
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key      string `json:"key"`
			DocCount int    `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

func (c *Client) search(ctx context.Context, index string, body any) (*esSearchResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", c.baseURL, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ESUsername != "" {
		req.SetBasicAuth(c.cfg.ESUsername, c.cfg.ESPassword)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrSearchUnavailable, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %s: %s", resp.Status, string(respBody))
	}

	var parsed esSearchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &parsed, nil
}

// SearchByProductName returns passage records for a product, exact on the
// product_name keyword field or analyzed match.
func (c *Client) SearchByProductName(ctx context.Context, productName string, size int, exact bool) ([]StructuredChunk, error) {
	var query map[string]any
	if exact {
		query = map[string]any{"term": map[string]any{"product_name.keyword": productName}}
	} else {
		query = map[string]any{"match": map[string]any{"product_name": productName}}
	}

	resp, err := c.search(ctx, c.cfg.ClauseIndex, map[string]any{
		"query": query,
		"size":  size,
	})
	if err != nil {
		return nil, err
	}
	return decodeChunks(resp.Hits.Hits), nil
}

// SearchByVectorAndProduct ranks passages scoped to a product by cosine
// similarity plus 1.0 and returns their texts in ranked order.
func (c *Client) SearchByVectorAndProduct(ctx context.Context, productName string, vector []float32, size int) ([]string, error) {
	resp, err := c.search(ctx, c.cfg.ClauseIndex, map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"match": map[string]any{"product_name": productName}},
					map[string]any{"script_score": map[string]any{
						"query": map[string]any{"match_all": map[string]any{}},
						"script": map[string]any{
							"source": "cosineSimilarity(params.query_vector, 'chunk_vector') + 1.0",
							"params": map[string]any{"query_vector": vector},
						},
					}},
				},
			},
		},
		"size": size,
	})
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(resp.Hits.Hits))
	for _, chunk := range decodeChunks(resp.Hits.Hits) {
		texts = append(texts, chunk.ChunkText)
	}
	return texts, nil
}

// SearchByProduct returns near-duplicate-filtered passage texts for a
// product, descending by relevance score.
func (c *Client) SearchByProduct(ctx context.Context, productName string, size int) ([]string, error) {
	resp, err := c.search(ctx, c.cfg.ClauseIndex, map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"match": map[string]any{"product_name": productName}},
				},
			},
		},
		"sort": []any{map[string]any{"_score": map[string]any{"order": "desc"}}},
		// Overfetch so the duplicate filter can still fill the request
		"size": size * 2,
	})
	if err != nil {
		return nil, err
	}

	chunks := decodeChunks(resp.Hits.Hits)
	unique := dedupeChunks(chunks, size, c.cfg.DedupProductSim, c.cfg.DedupLengthRatio)

	texts := make([]string, 0, len(unique))
	for _, chunk := range unique {
		texts = append(texts, chunk.ChunkText)
	}
	return texts, nil
}

// SearchByProductAndChunkType returns near-duplicate-filtered structured
// records for a product and attribute category.
func (c *Client) SearchByProductAndChunkType(ctx context.Context, productName, chunkType string, size int) ([]StructuredChunk, error) {
	resp, err := c.search(ctx, c.cfg.StructuredIndex, map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"match": map[string]any{"product_name": productName}},
					map[string]any{"term": map[string]any{"chunk_type": chunkType}},
				},
			},
		},
		"sort": []any{map[string]any{"_score": map[string]any{"order": "desc"}}},
		"size": size * 2,
	})
	if err != nil {
		return nil, err
	}

	chunks := decodeChunks(resp.Hits.Hits)
	return dedupeChunks(chunks, size, c.cfg.DedupStructuredSim, c.cfg.DedupLengthRatio), nil
}

// AllProductNames returns the deduplicated catalog of product names via a
// terms aggregation, most-documented first.
func (c *Client) AllProductNames(ctx context.Context) ([]string, error) {
	resp, err := c.search(ctx, c.cfg.ClauseIndex, map[string]any{
		"size":  0,
		"query": map[string]any{"match_all": map[string]any{}},
		"aggs": map[string]any{
			"unique_products": map[string]any{
				"terms": map[string]any{
					"field": "product_name",
					"size":  10000,
					"order": map[string]any{"_count": "desc"},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	agg, ok := resp.Aggregations["unique_products"]
	if !ok {
		return nil, fmt.Errorf("missing unique_products aggregation")
	}
	names := make([]string, 0, len(agg.Buckets))
	for _, bucket := range agg.Buckets {
		names = append(names, bucket.Key)
	}
	return names, nil
}

// TermDefinitions looks up controlled-vocabulary definitions matching a
// keyword. Definitions change rarely, so results are LRU-cached.
func (c *Client) TermDefinitions(ctx context.Context, keyword string) ([]string, error) {
	if cached, ok := c.termCache.Get(keyword); ok {
		return cached.([]string), nil
	}

	resp, err := c.search(ctx, c.cfg.TermIndex, map[string]any{
		"query": map[string]any{"match": map[string]any{"term_keyword": keyword}},
		"size":  10,
	})
	if err != nil {
		return nil, err
	}

	definitions := make([]string, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var source struct {
			TermDefinition string `json:"term_definition"`
		}
		if err := json.Unmarshal(hit.Source, &source); err != nil {
			c.logger.Warn("Failed to decode term definition", zap.Error(err))
			continue
		}
		definitions = append(definitions, source.TermDefinition)
	}

	c.termCache.Add(keyword, definitions)
	return definitions, nil
}

// EnsureIndex creates an index with the given mapping unless it already
// exists. Used by ingestion tooling, not by the QA path.
func (c *Client) EnsureIndex(ctx context.Context, index string, mapping any) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, index)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("create exists request: %w", err)
	}
	if c.cfg.ESUsername != "" {
		req.SetBasicAuth(c.cfg.ESUsername, c.cfg.ESPassword)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrSearchUnavailable, err.Error())
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	jsonBody, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal index mapping: %w", err)
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ESUsername != "" {
		req.SetBasicAuth(c.cfg.ESUsername, c.cfg.ESPassword)
	}
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrSearchUnavailable, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read create index response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("create index status %s: %s", resp.Status, string(respBody))
	}
	c.logger.Info("Created search index", zap.String("index", index))
	return nil
}

// IndexDocument writes a document into an index, generating an id when
// documentID is empty. Used by ingestion tooling, not by the QA path.
func (c *Client) IndexDocument(ctx context.Context, index, documentID string, document any) (string, error) {
	jsonBody, err := json.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_doc", c.baseURL, index)
	if documentID != "" {
		url += "/" + documentID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ESUsername != "" {
		req.SetBasicAuth(c.cfg.ESUsername, c.cfg.ESPassword)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.WrapError(apperrors.ErrSearchUnavailable, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read index response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("index status %s: %s", resp.Status, string(respBody))
	}

	var result struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode index response: %w", err)
	}
	return result.ID, nil
}

func decodeChunks(hits []esHit) []StructuredChunk {
	chunks := make([]StructuredChunk, 0, len(hits))
	for _, hit := range hits {
		var chunk StructuredChunk
		if err := json.Unmarshal(hit.Source, &chunk); err != nil {
			continue
		}
		chunk.Score = hit.Score
		chunks = append(chunks, chunk)
	}
	return chunks
}
