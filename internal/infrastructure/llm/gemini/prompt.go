package gemini

import (
	"fmt"
	"strings"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

const enhancerSystem = `You are a search query optimization expert. Enhance search queries for better information retrieval while maintaining the original intent. Return ONLY the enhanced query.`

func buildEnhancePrompt(query string) string {
	return fmt.Sprintf("Enhance this search query: %q", query)
}

func buildWebSearchPrompt(query string) string {
	return fmt.Sprintf(`Search the web for comprehensive, credible information about: %q

Focus on finding:
- Recent and authoritative sources
- Academic papers and research
- Industry reports and whitepapers
- Reputable news articles
- Official documentation and guides

Return a comprehensive set of high-quality results.`, query)
}

func buildExtractionPrompt(query, rawResults string) string {
	return fmt.Sprintf(`Transform these web search results into structured data:

Query: %q
Raw Results: %s

Extract the most relevant and authoritative sources. Focus on credibility and relevance.`, query, rawResults)
}

// webSearchResponseSchema constrains the extraction step to the typed
// candidate record shape: relevance_score on the native 0..10 scale.
func webSearchResponseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"results": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":           map[string]any{"type": "string"},
						"url":             map[string]any{"type": "string"},
						"snippet":         map[string]any{"type": "string"},
						"source":          map[string]any{"type": "string"},
						"relevance_score": map[string]any{"type": "number", "minimum": 0, "maximum": 10},
					},
					"required": []string{"title", "url", "snippet", "source", "relevance_score"},
				},
			},
			"total": map[string]any{"type": "integer"},
			"query": map[string]any{"type": "string"},
		},
		"required": []string{"results", "total", "query"},
	}
}

func buildSynthesisPrompt(query string, fused []domain.FusedResult, opts domain.SynthesisOptions) string {
	maxSources := opts.MaxSources
	if maxSources <= 0 || maxSources > len(fused) {
		maxSources = len(fused)
	}

	var contextBlock strings.Builder
	for i, r := range fused[:maxSources] {
		contextBlock.WriteString(fmt.Sprintf("[Source %d] %s\nURL: %s\nContent: %s\n\n", i+1, r.Title, r.URL, synthesisContent(r)))
	}

	knowledgeInstruction := "Strictly use only the provided search results. Do not use any external knowledge."
	if opts.AllowExternalKnowledge {
		knowledgeInstruction = "If the search results are insufficient, you may carefully supplement with general knowledge, but clearly indicate this."
	}

	return fmt.Sprintf(`Answer the following query based on the provided search results.

Query: %s

Search Results:
%s
Instructions:
- Provide a comprehensive answer based on the search results
- %s
- Cite sources using [Source X] notation
- Be concise but thorough
- Acknowledge any conflicting information

Answer:`, query, contextBlock.String(), knowledgeInstruction)
}

func synthesisContent(r domain.FusedResult) string {
	if c := strings.TrimSpace(r.Content); c != "" {
		return c
	}
	if h := strings.TrimSpace(r.Highlight); h != "" {
		return h
	}
	return strings.TrimSpace(r.Snippet)
}

// synthesisContextText is the concatenated context the groundedness scorer
// compares the generated answer against.
func synthesisContextText(fused []domain.FusedResult, maxSources int) string {
	if maxSources <= 0 || maxSources > len(fused) {
		maxSources = len(fused)
	}
	var b strings.Builder
	for _, r := range fused[:maxSources] {
		b.WriteString(r.Title)
		b.WriteString("\n")
		b.WriteString(synthesisContent(r))
		b.WriteString("\n")
	}
	return b.String()
}

const followUpSystem = `As a professional web researcher, generate three follow-up queries that explore the subject matter more deeply. Build upon the initial query and search results to create queries that delve into specific aspects, implications, or adjacent topics. Match the language of the original query.`

func buildFollowUpPrompt(query, contextSummary string) string {
	return fmt.Sprintf(`Original query: %q

Search results context: %s

Generate three related questions that would help explore this topic further:`, query, contextSummary)
}

func followUpSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 3,
				"maxItems": 3,
			},
		},
		"required": []string{"questions"},
	}
}
