package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/answer-engine/internal/core/domain"
	"github.com/kirillkom/answer-engine/internal/core/ports"
	"github.com/kirillkom/answer-engine/internal/infrastructure/resilience"
)

// Client implements the hybrid lexical+semantic IndexStore over an
// Elasticsearch index. Lexical matching is a field-weighted fuzzy multi_match
// (title over content over source); the semantic side is a knn clause over the
// embeddings field, skipped when the query embedding is unavailable.
type Client struct {
	baseURL    string
	apiKey     string
	index      string
	vectorDims int
	httpClient *http.Client
	embedder   ports.Embedder
	executor   *resilience.Executor

	ensureMu     sync.Mutex
	ensuredIndex bool
}

type Options struct {
	RequestTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey, index string, vectorDims int, embedder ports.Embedder) *Client {
	return NewWithOptions(baseURL, apiKey, index, vectorDims, embedder, Options{})
}

func NewWithOptions(baseURL, apiKey, index string, vectorDims int, embedder ports.Embedder, options Options) *Client {
	if vectorDims <= 0 {
		vectorDims = 768
	}
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		index:      index,
		vectorDims: vectorDims,
		httpClient: &http.Client{Timeout: requestTimeout},
		embedder:   embedder,
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Search(ctx context.Context, query string, filters []string, limit int) (domain.IndexSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if err := c.ensureIndex(ctx); err != nil {
		return domain.IndexSearchResult{}, err
	}

	should := []map[string]any{
		{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^3", "content^2", "source"},
				"fuzziness": "AUTO",
			},
		},
	}
	if vector := c.queryVector(ctx, query); vector != nil {
		should = append(should, map[string]any{
			"knn": map[string]any{
				"field":          "embeddings",
				"query_vector":   vector,
				"k":              limit,
				"num_candidates": limit * 10,
			},
		})
	}

	boolQuery := map[string]any{"should": should}
	if len(filters) > 0 {
		boolQuery["filter"] = map[string]any{
			"terms": map[string]any{"source.keyword": filters},
		}
	}

	reqBody := map[string]any{
		"size":  limit,
		"query": map[string]any{"bool": boolQuery},
		"highlight": map[string]any{
			"fields": map[string]any{
				"content": map[string]any{
					"fragment_size":       150,
					"number_of_fragments": 3,
				},
			},
		},
		"aggs": map[string]any{
			"sources": map[string]any{
				"terms": map[string]any{
					"field": "source.keyword",
					"size":  20,
				},
			},
		},
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID        string         `json:"_id"`
				Score     float64        `json:"_score"`
				Source    map[string]any `json:"_source"`
				Highlight struct {
					Content []string `json:"content"`
				} `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations struct {
			Sources struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int    `json:"doc_count"`
				} `json:"buckets"`
			} `json:"sources"`
		} `json:"aggregations"`
	}
	if err := c.do(ctx, http.MethodPost, "/"+c.index+"/_search", reqBody, &searchResp, "search"); err != nil {
		return domain.IndexSearchResult{}, wrapTemporaryIfNeeded("index search", err)
	}

	candidates := make([]domain.Candidate, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		highlight := ""
		if len(hit.Highlight.Content) > 0 {
			highlight = hit.Highlight.Content[0]
		}
		candidates = append(candidates, domain.Candidate{
			ID:        hit.ID,
			Title:     sourceString(hit.Source, "title"),
			URL:       sourceString(hit.Source, "url"),
			Content:   sourceString(hit.Source, "content"),
			Source:    sourceString(hit.Source, "source"),
			Score:     hit.Score,
			Highlight: highlight,
			Origin:    domain.OriginIndexed,
		})
	}

	facets := make([]domain.FacetCount, 0, len(searchResp.Aggregations.Sources.Buckets))
	for _, bucket := range searchResp.Aggregations.Sources.Buckets {
		facets = append(facets, domain.FacetCount{Key: bucket.Key, Count: bucket.DocCount})
	}

	return domain.IndexSearchResult{
		Candidates:  candidates,
		Total:       searchResp.Hits.Total.Value,
		FacetCounts: facets,
	}, nil
}

// Ingest bulk-indexes candidates for future retrieval. Embedding failures
// degrade to documents without the vector field.
func (c *Client) Ingest(ctx context.Context, query string, candidates []domain.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}
	if err := c.ensureIndex(ctx); err != nil {
		return err
	}

	vectors := c.contentVectors(ctx, candidates)

	var body bytes.Buffer
	encoder := json.NewEncoder(&body)
	now := time.Now().UTC().Format(time.RFC3339)
	for i, candidate := range candidates {
		doc := map[string]any{
			"title":           candidate.Title,
			"content":         ingestContent(candidate),
			"url":             candidate.URL,
			"source":          candidate.Source,
			"query":           query,
			"relevance_score": candidate.RelevanceScore,
			"timestamp":       now,
		}
		if vectors != nil && i < len(vectors) && len(vectors[i]) > 0 {
			doc["embeddings"] = vectors[i]
		}
		if err := encoder.Encode(map[string]any{"index": map[string]any{"_index": c.index}}); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := c.doRaw(ctx, http.MethodPost, "/_bulk?refresh=true", body.Bytes(), "application/x-ndjson", &bulkResp, "bulk ingest"); err != nil {
		return wrapTemporaryIfNeeded("bulk ingest", err)
	}
	if bulkResp.Errors {
		return fmt.Errorf("elasticsearch bulk ingest reported item errors")
	}
	return nil
}

// ensureIndex creates the index mapping lazily, once per process. A concurrent
// creation losing the race surfaces as resource_already_exists_exception and
// is treated as success.
func (c *Client) ensureIndex(ctx context.Context) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredIndex {
		return nil
	}

	exists, err := c.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		c.ensuredIndex = true
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"title": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword"},
					},
				},
				"content": map[string]any{"type": "text"},
				"url":     map[string]any{"type": "keyword"},
				"source": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword"},
					},
				},
				"query":           map[string]any{"type": "keyword"},
				"relevance_score": map[string]any{"type": "float"},
				"timestamp":       map[string]any{"type": "date"},
				"embeddings": map[string]any{
					"type":       "dense_vector",
					"dims":       c.vectorDims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}

	err = c.do(ctx, http.MethodPut, "/"+c.index, mapping, nil, "create index")
	if err != nil && !isAlreadyExists(err) {
		return err
	}
	c.ensuredIndex = true
	return nil
}

func (c *Client) indexExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/"+c.index, nil)
	if err != nil {
		return false, fmt.Errorf("create index exists request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("elasticsearch index exists request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("elasticsearch index exists status: %s", resp.Status)
	}
}

func (c *Client) queryVector(ctx context.Context, query string) []float32 {
	if c.embedder == nil {
		return nil
	}
	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("query_embedding_failed_lexical_only", "error", err)
		return nil
	}
	return vector
}

func (c *Client) contentVectors(ctx context.Context, candidates []domain.Candidate) [][]float32 {
	if c.embedder == nil {
		return nil
	}
	texts := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		texts = append(texts, ingestContent(candidate))
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		slog.Warn("ingest_embedding_failed_indexing_without_vectors", "count", len(candidates), "error", err)
		return nil
	}
	return vectors
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.doRaw(ctx, method, path, body, "application/json", out, operation)
}

func (c *Client) doRaw(ctx context.Context, method, path string, body []byte, contentType string, out any, operation string) error {
	call := func(callCtx context.Context) error {
		return c.doOnce(callCtx, method, path, body, contentType, out, operation)
	}
	if c.executor != nil {
		return c.executor.Execute(ctx, "elastic."+operation, call, classifyElasticError)
	}
	return call(ctx)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, contentType string, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", contentType)
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}
}

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource_already_exists_exception")
}

func ingestContent(candidate domain.Candidate) string {
	if c := strings.TrimSpace(candidate.Content); c != "" {
		return c
	}
	return strings.TrimSpace(candidate.Snippet)
}

func sourceString(source map[string]any, key string) string {
	v, ok := source[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
