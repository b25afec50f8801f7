package domain

import "time"

type CandidateOrigin string

const (
	OriginWeb     CandidateOrigin = "web"
	OriginIndexed CandidateOrigin = "indexed"
)

// Candidate is a single retrieval hit before fusion. Web candidates carry their
// native relevance score on a 0..10 scale, indexed candidates carry the store's
// unbounded relevance units; fusion normalizes both to 0..1.
type Candidate struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	URL            string          `json:"url"`
	Content        string          `json:"content"`
	Snippet        string          `json:"snippet,omitempty"`
	Source         string          `json:"source"`
	Score          float64         `json:"score"`
	RelevanceScore float64         `json:"relevance_score,omitempty"`
	Highlight      string          `json:"highlight,omitempty"`
	Origin         CandidateOrigin `json:"origin"`
}

type FusedResult struct {
	Candidate
	NormScore float64 `json:"norm_score"`
	Rank      int     `json:"rank"`
}

type SourceFacet struct {
	ID      int    `json:"id"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

type FacetCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type IndexSearchResult struct {
	Candidates  []Candidate  `json:"candidates"`
	Total       int          `json:"total"`
	FacetCounts []FacetCount `json:"facet_counts,omitempty"`
}

type SynthesisOptions struct {
	AllowExternalKnowledge bool `json:"allow_external_knowledge"`
	MaxSources             int  `json:"max_sources"`
}

type SynthesisResult struct {
	Text                  string `json:"text"`
	UsedExternalKnowledge bool   `json:"used_external_knowledge"`
	ElapsedMs             int64  `json:"elapsed_ms"`
}

type SearchRequest struct {
	Query                  string   `json:"query"`
	Filters                []string `json:"filters,omitempty"`
	NumSources             int      `json:"num_sources,omitempty"`
	AllowExternalKnowledge bool     `json:"allow_external_knowledge,omitempty"`
}

type SourceCounts struct {
	Web     int `json:"web"`
	Indexed int `json:"indexed"`
	Total   int `json:"total"`
}

type SearchResponse struct {
	Results               []FusedResult `json:"results"`
	SourceFacets          []SourceFacet `json:"source_facets"`
	FollowUps             []string      `json:"follow_ups"`
	AnswerText            string        `json:"answer_text"`
	UsedExternalKnowledge bool          `json:"used_external_knowledge"`
	EnhancedQuery         string        `json:"enhanced_query"`
	Counts                SourceCounts  `json:"counts"`
	ElapsedMs             int64         `json:"elapsed_ms"`
}

// SearchRecord is the persisted history row for one completed pipeline run.
type SearchRecord struct {
	ID                    string    `json:"id"`
	Query                 string    `json:"query"`
	EnhancedQuery         string    `json:"enhanced_query"`
	WebCount              int       `json:"web_count"`
	IndexedCount          int       `json:"indexed_count"`
	AnswerChars           int       `json:"answer_chars"`
	UsedExternalKnowledge bool      `json:"used_external_knowledge"`
	DurationMs            int64     `json:"duration_ms"`
	CreatedAt             time.Time `json:"created_at"`
}
