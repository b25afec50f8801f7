package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/answer-engine/internal/core/domain"
	"github.com/kirillkom/answer-engine/internal/core/ports"
)

const (
	defaultNumSources = 10
	minNumSources     = 5
	maxNumSources     = 20

	followUpContextMaxChars = 2000
)

// fallbackFollowUps is returned whenever follow-up generation fails. The count
// invariant (exactly three) must hold even on fallback.
var fallbackFollowUps = []string{
	"What are the key trends in this area?",
	"How is this technology being applied in practice?",
	"What are the main challenges and opportunities?",
}

type PipelineLimits struct {
	EnhanceTimeout   time.Duration
	RetrieveTimeout  time.Duration
	SynthesisTimeout time.Duration
	FollowUpTimeout  time.Duration
	IngestTimeout    time.Duration
	HistoryTimeout   time.Duration
	WebLimit         int
}

// StageObserver receives pipeline telemetry. Implemented by the Prometheus
// metrics layer; the usecase only depends on this narrow surface.
type StageObserver interface {
	StageFailure(stage string)
	PipelineCompleted(counts domain.SourceCounts, groundedFallback bool, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) StageFailure(string)                                        {}
func (noopObserver) PipelineCompleted(domain.SourceCounts, bool, time.Duration) {}

// SearchUseCase sequences the retrieval-and-synthesis pipeline: enhancement,
// concurrent federated retrieval, fire-and-forget ingest of web discoveries,
// fusion, streamed synthesis and follow-up generation. Every stage except
// synthesis degrades to its documented fallback instead of failing the request.
type SearchUseCase struct {
	enhancer    ports.QueryEnhancer
	web         ports.WebRetriever
	index       ports.IndexStore
	synthesizer ports.AnswerSynthesizer
	followUps   ports.FollowUpGenerator
	queue       ports.CandidateQueue
	history     ports.SearchLogStore
	observer    StageObserver
	limits      PipelineLimits
}

func NewSearchUseCase(
	enhancer ports.QueryEnhancer,
	web ports.WebRetriever,
	index ports.IndexStore,
	synthesizer ports.AnswerSynthesizer,
	followUps ports.FollowUpGenerator,
	queue ports.CandidateQueue,
	history ports.SearchLogStore,
	observer StageObserver,
	limits PipelineLimits,
) *SearchUseCase {
	if limits.EnhanceTimeout <= 0 {
		limits.EnhanceTimeout = 10 * time.Second
	}
	if limits.RetrieveTimeout <= 0 {
		limits.RetrieveTimeout = 30 * time.Second
	}
	if limits.SynthesisTimeout <= 0 {
		limits.SynthesisTimeout = 60 * time.Second
	}
	if limits.FollowUpTimeout <= 0 {
		limits.FollowUpTimeout = 20 * time.Second
	}
	if limits.IngestTimeout <= 0 {
		limits.IngestTimeout = 15 * time.Second
	}
	if limits.HistoryTimeout <= 0 {
		limits.HistoryTimeout = 5 * time.Second
	}
	if limits.WebLimit <= 0 {
		limits.WebLimit = 15
	}
	if observer == nil {
		observer = noopObserver{}
	}

	return &SearchUseCase{
		enhancer:    enhancer,
		web:         web,
		index:       index,
		synthesizer: synthesizer,
		followUps:   followUps,
		queue:       queue,
		history:     history,
		observer:    observer,
		limits:      limits,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest, onChunk func(string)) (*domain.SearchResponse, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("query is required"))
	}
	numSources := clampNumSources(req.NumSources)

	enhanced := uc.enhanceQuery(ctx, query)

	indexed, web := uc.retrieveFederated(ctx, enhanced, req.Filters, numSources)

	if len(web) > 0 {
		uc.ingestDetached(enhanced, web)
	}

	fused := fuseCandidates(indexed, web, numSources)
	facets := buildSourceFacets(indexed, web)

	followUpCh := make(chan []string, 1)
	go func() {
		followUpCh <- uc.generateFollowUps(ctx, query, fused)
	}()

	synthCtx, cancel := context.WithTimeout(ctx, uc.limits.SynthesisTimeout)
	defer cancel()
	synthesis, err := uc.synthesizer.Synthesize(synthCtx, enhanced, fused, domain.SynthesisOptions{
		AllowExternalKnowledge: req.AllowExternalKnowledge,
		MaxSources:             numSources,
	}, onChunk)
	if err != nil {
		uc.observer.StageFailure("synthesis")
		return nil, domain.WrapError(domain.ErrSynthesis, "synthesize answer", err)
	}

	followUps := <-followUpCh

	resp := &domain.SearchResponse{
		Results:               fused,
		SourceFacets:          facets,
		FollowUps:             followUps,
		AnswerText:            synthesis.Text,
		UsedExternalKnowledge: synthesis.UsedExternalKnowledge,
		EnhancedQuery:         enhanced,
		Counts: domain.SourceCounts{
			Web:     len(web),
			Indexed: len(indexed),
			Total:   len(fused),
		},
		ElapsedMs: time.Since(start).Milliseconds(),
	}

	uc.recordDetached(resp, query)
	uc.observer.PipelineCompleted(resp.Counts, synthesis.UsedExternalKnowledge, time.Since(start))
	return resp, nil
}

// enhanceQuery never fails the pipeline: any error or empty rewrite falls back
// to the original query.
func (uc *SearchUseCase) enhanceQuery(ctx context.Context, query string) string {
	enhanceCtx, cancel := context.WithTimeout(ctx, uc.limits.EnhanceTimeout)
	defer cancel()

	enhanced, err := uc.enhancer.Enhance(enhanceCtx, query)
	if err != nil {
		uc.observer.StageFailure("enhance")
		slog.Warn("query_enhancement_failed", "error", err)
		return query
	}
	enhanced = strings.TrimSpace(enhanced)
	if enhanced == "" {
		return query
	}
	return enhanced
}

// retrieveFederated runs web retrieval and index search concurrently. Either
// side failing or timing out yields an empty list for that origin.
func (uc *SearchUseCase) retrieveFederated(ctx context.Context, query string, filters []string, limit int) (indexed, web []domain.Candidate) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		webCtx, cancel := context.WithTimeout(ctx, uc.limits.RetrieveTimeout)
		defer cancel()
		candidates, err := uc.web.RetrieveWeb(webCtx, query, uc.limits.WebLimit)
		if err != nil {
			uc.observer.StageFailure("web_retrieval")
			slog.Warn("web_retrieval_failed", "error", err)
			return
		}
		web = candidates
	}()

	go func() {
		defer wg.Done()
		indexCtx, cancel := context.WithTimeout(ctx, uc.limits.RetrieveTimeout)
		defer cancel()
		result, err := uc.index.Search(indexCtx, query, filters, limit)
		if err != nil {
			uc.observer.StageFailure("index_search")
			slog.Warn("index_search_failed", "error", err)
			return
		}
		indexed = result.Candidates
	}()

	wg.Wait()
	return indexed, web
}

// ingestDetached hands newly discovered web candidates to the ingest queue on
// a detached context; completion is observable only via logs.
func (uc *SearchUseCase) ingestDetached(query string, candidates []domain.Candidate) {
	if uc.queue == nil {
		return
	}
	go func() {
		ingestCtx, cancel := context.WithTimeout(context.Background(), uc.limits.IngestTimeout)
		defer cancel()
		if err := uc.queue.PublishCandidates(ingestCtx, query, candidates); err != nil {
			uc.observer.StageFailure("ingest_publish")
			slog.Warn("candidate_ingest_publish_failed", "count", len(candidates), "error", err)
			return
		}
		slog.Debug("candidate_ingest_published", "count", len(candidates))
	}()
}

func (uc *SearchUseCase) generateFollowUps(ctx context.Context, query string, fused []domain.FusedResult) []string {
	followCtx, cancel := context.WithTimeout(ctx, uc.limits.FollowUpTimeout)
	defer cancel()

	questions, err := uc.followUps.FollowUps(followCtx, query, followUpContext(fused))
	if err != nil || len(questions) != 3 {
		if err != nil {
			uc.observer.StageFailure("follow_ups")
			slog.Warn("follow_up_generation_failed", "error", err)
		}
		out := make([]string, 3)
		copy(out, fallbackFollowUps)
		return out
	}
	return questions
}

func (uc *SearchUseCase) recordDetached(resp *domain.SearchResponse, originalQuery string) {
	if uc.history == nil {
		return
	}
	record := domain.SearchRecord{
		ID:                    uuid.NewString(),
		Query:                 originalQuery,
		EnhancedQuery:         resp.EnhancedQuery,
		WebCount:              resp.Counts.Web,
		IndexedCount:          resp.Counts.Indexed,
		AnswerChars:           len(resp.AnswerText),
		UsedExternalKnowledge: resp.UsedExternalKnowledge,
		DurationMs:            resp.ElapsedMs,
		CreatedAt:             time.Now().UTC(),
	}
	go func() {
		historyCtx, cancel := context.WithTimeout(context.Background(), uc.limits.HistoryTimeout)
		defer cancel()
		if err := uc.history.Insert(historyCtx, record); err != nil {
			slog.Warn("search_record_insert_failed", "error", err)
		}
	}()
}

func followUpContext(fused []domain.FusedResult) string {
	var b strings.Builder
	for _, r := range fused {
		line := strings.TrimSpace(r.Title)
		if h := strings.TrimSpace(r.Highlight); h != "" {
			line += ": " + h
		}
		if line == "" {
			continue
		}
		if b.Len()+len(line)+1 > followUpContextMaxChars {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func clampNumSources(n int) int {
	if n == 0 {
		return defaultNumSources
	}
	if n < minNumSources {
		return minNumSources
	}
	if n > maxNumSources {
		return maxNumSources
	}
	return n
}
