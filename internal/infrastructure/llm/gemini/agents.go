package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/answer-engine/internal/core/domain"
	"github.com/kirillkom/answer-engine/internal/core/ports"
)

const groundednessThreshold = 0.3

type Enhancer struct {
	client *Client
}

func NewEnhancer(client *Client) *Enhancer {
	return &Enhancer{client: client}
}

func (e *Enhancer) Enhance(ctx context.Context, query string) (string, error) {
	enhanced, err := e.client.generateText(ctx, enhancerSystem, buildEnhancePrompt(query))
	if err != nil {
		return "", err
	}
	enhanced = strings.Trim(strings.TrimSpace(enhanced), `"`)
	if enhanced == "" {
		return query, nil
	}
	return enhanced, nil
}

// WebRetriever runs the two-step web retrieval protocol: a free-form search
// through the google_search tool, then a schema-constrained extraction of the
// unstructured result into typed candidates.
type WebRetriever struct {
	client *Client
}

func NewWebRetriever(client *Client) *WebRetriever {
	return &WebRetriever{client: client}
}

type webSearchResult struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Snippet        string  `json:"snippet"`
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevance_score"`
}

type webSearchResponse struct {
	Results []webSearchResult `json:"results"`
	Total   int               `json:"total"`
	Query   string            `json:"query"`
}

func (r *WebRetriever) RetrieveWeb(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		limit = 15
	}

	rawResults, err := r.client.generateWithSearch(ctx, buildWebSearchPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	structured, err := r.client.generateJSON(ctx, "", buildExtractionPrompt(query, rawResults), webSearchResponseSchema())
	if err != nil {
		return nil, fmt.Errorf("structure web results: %w", err)
	}

	var parsed webSearchResponse
	if err := json.Unmarshal([]byte(extractJSONObject(structured)), &parsed); err != nil {
		return nil, fmt.Errorf("parse web results json: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(parsed.Results))
	for i, result := range parsed.Results {
		if len(candidates) >= limit {
			break
		}
		title := strings.TrimSpace(result.Title)
		url := strings.TrimSpace(result.URL)
		if title == "" && url == "" {
			continue
		}
		source := strings.TrimSpace(result.Source)
		if source == "" {
			source = "web"
		}
		candidates = append(candidates, domain.Candidate{
			ID:             fmt.Sprintf("web-%d", i),
			Title:          title,
			URL:            url,
			Content:        result.Snippet,
			Snippet:        result.Snippet,
			Source:         source,
			RelevanceScore: clampRelevance(result.RelevanceScore),
			Origin:         domain.OriginWeb,
		})
	}
	return candidates, nil
}

func clampRelevance(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// Synthesizer generates the grounded answer as a chunk stream and estimates
// groundedness over the synthesis-visible context.
type Synthesizer struct {
	client *Client
	scorer ports.GroundednessScorer
}

func NewSynthesizer(client *Client, scorer ports.GroundednessScorer) *Synthesizer {
	return &Synthesizer{client: client, scorer: scorer}
}

func (s *Synthesizer) Synthesize(ctx context.Context, query string, fused []domain.FusedResult, opts domain.SynthesisOptions, onChunk func(string)) (*domain.SynthesisResult, error) {
	start := time.Now()

	text, err := s.client.streamGenerate(ctx, buildSynthesisPrompt(query, fused, opts), onChunk)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	usedExternal := false
	if opts.AllowExternalKnowledge {
		grounded := s.scorer.Score(text, synthesisContextText(fused, opts.MaxSources))
		usedExternal = grounded <= groundednessThreshold
	}

	return &domain.SynthesisResult{
		Text:                  strings.TrimSpace(text),
		UsedExternalKnowledge: usedExternal,
		ElapsedMs:             time.Since(start).Milliseconds(),
	}, nil
}

type FollowUpGenerator struct {
	client *Client
}

func NewFollowUpGenerator(client *Client) *FollowUpGenerator {
	return &FollowUpGenerator{client: client}
}

func (g *FollowUpGenerator) FollowUps(ctx context.Context, query string, contextSummary string) ([]string, error) {
	raw, err := g.client.generateJSON(ctx, followUpSystem, buildFollowUpPrompt(query, contextSummary), followUpSchema())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse follow-up json: %w", err)
	}

	questions := make([]string, 0, 3)
	for _, q := range parsed.Questions {
		q = strings.TrimSpace(q)
		if q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) != 3 {
		return nil, fmt.Errorf("expected 3 follow-up questions, got %d", len(questions))
	}
	return questions, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
