package ports

import (
	"context"
	"time"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

// QueryEnhancer rewrites a raw query for better retrieval recall.
// Implementations may fail; the orchestrator falls back to the original query.
type QueryEnhancer interface {
	Enhance(ctx context.Context, query string) (string, error)
}

// WebRetriever performs a web-scale search and returns typed candidates
// (Origin=web, native relevance score 0..10).
type WebRetriever interface {
	RetrieveWeb(ctx context.Context, query string, limit int) ([]domain.Candidate, error)
}

// IndexStore is the hybrid lexical+semantic interface over the persistent
// document index. Ingest persists newly discovered candidates for future
// retrieval; callers treat its failure as non-fatal.
type IndexStore interface {
	Search(ctx context.Context, query string, filters []string, limit int) (domain.IndexSearchResult, error)
	Ingest(ctx context.Context, query string, candidates []domain.Candidate) error
}

// AnswerSynthesizer builds a grounded prompt from fused results and generates
// the answer. Chunks are forwarded to onChunk in arrival order when non-nil.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, query string, fused []domain.FusedResult, opts domain.SynthesisOptions, onChunk func(string)) (*domain.SynthesisResult, error)
}

// FollowUpGenerator produces exactly three related questions, language-matched
// to the query. On error the orchestrator substitutes a fixed fallback set.
type FollowUpGenerator interface {
	FollowUps(ctx context.Context, query string, contextSummary string) ([]string, error)
}

// GroundednessScorer estimates how much of a generated answer is traceable to
// the supplied context, in 0..1. The default is a lexical heuristic; it can be
// swapped for an embedding- or NLI-based scorer without touching the pipeline.
type GroundednessScorer interface {
	Score(response string, contextText string) float64
}

// Embedder builds vectors for candidate content and query text. Treated as an
// external capability; adapters degrade to lexical-only behavior when it fails.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CandidateQueue decouples candidate ingestion from the response path.
// Subscribers receive the retrieval query, the candidate batch and the
// discovery timestamp (for queue-lag accounting).
type CandidateQueue interface {
	PublishCandidates(ctx context.Context, query string, candidates []domain.Candidate) error
	SubscribeCandidates(ctx context.Context, handler func(ctx context.Context, query string, candidates []domain.Candidate, discoveredAt time.Time) error) error
}

// SearchLogStore persists completed search records.
type SearchLogStore interface {
	Insert(ctx context.Context, record domain.SearchRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.SearchRecord, error)
}
