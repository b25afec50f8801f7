package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

func TestFuseNormalizesBothOrigins(t *testing.T) {
	indexed := []domain.Candidate{
		{ID: "idx-1", Title: "A", Source: "docs", Score: 8},
		{ID: "idx-2", Title: "B", Source: "docs", Score: 4},
	}
	web := []domain.Candidate{
		{ID: "web-1", Title: "C", Source: "web", RelevanceScore: 10},
		{ID: "web-2", Title: "D", Source: "web", RelevanceScore: 3},
	}

	fused := fuseCandidates(indexed, web, 10)
	if len(fused) != 4 {
		t.Fatalf("expected 4 fused results, got %d", len(fused))
	}

	scores := map[string]float64{}
	for _, r := range fused {
		scores[r.ID] = r.NormScore
	}
	if scores["idx-1"] != 1.0 {
		t.Fatalf("max indexed score should normalize to 1.0, got %v", scores["idx-1"])
	}
	if scores["idx-2"] != 0.5 {
		t.Fatalf("indexed 4/8 should normalize to 0.5, got %v", scores["idx-2"])
	}
	if scores["web-1"] != 1.0 {
		t.Fatalf("web relevance 10 should normalize to 1.0, got %v", scores["web-1"])
	}
	if scores["web-2"] != 0.3 {
		t.Fatalf("web relevance 3 should normalize to 0.3, got %v", scores["web-2"])
	}
}

func TestFuseSortsDescendingWithStableTies(t *testing.T) {
	indexed := []domain.Candidate{
		{ID: "idx-1", Score: 1.0},
	}
	web := []domain.Candidate{
		{ID: "web-1", RelevanceScore: 10},
	}

	fused := fuseCandidates(indexed, web, 10)
	if fused[0].ID != "idx-1" {
		t.Fatalf("indexed candidate should win an exact tie, got %s first", fused[0].ID)
	}
	for i := 1; i < len(fused); i++ {
		if fused[i].NormScore > fused[i-1].NormScore {
			t.Fatalf("results not sorted descending at position %d", i)
		}
	}
	for i, r := range fused {
		if r.Rank != i+1 {
			t.Fatalf("expected rank %d at position %d, got %d", i+1, i, r.Rank)
		}
	}
}

func TestFuseIndexedPassThroughWhenScoresAlreadyUnit(t *testing.T) {
	indexed := []domain.Candidate{
		{ID: "idx-1", Score: 0.9},
		{ID: "idx-2", Score: 0.3},
	}

	fused := fuseCandidates(indexed, nil, 10)
	if fused[0].NormScore != 0.9 || fused[1].NormScore != 0.3 {
		t.Fatalf("unit-range indexed scores must pass through, got %v and %v",
			fused[0].NormScore, fused[1].NormScore)
	}
}

func TestFuseTruncatesToLimit(t *testing.T) {
	var web []domain.Candidate
	for i := 0; i < 15; i++ {
		web = append(web, domain.Candidate{ID: "w", RelevanceScore: float64(i % 10)})
	}

	fused := fuseCandidates(nil, web, 5)
	if len(fused) != 5 {
		t.Fatalf("expected truncation to 5, got %d", len(fused))
	}
}

func TestFuseClampsOutOfRangeScores(t *testing.T) {
	web := []domain.Candidate{
		{ID: "hot", RelevanceScore: 42},
		{ID: "cold", RelevanceScore: -3},
	}

	fused := fuseCandidates(nil, web, 10)
	for _, r := range fused {
		if r.NormScore < 0 || r.NormScore > 1 {
			t.Fatalf("norm score out of [0,1]: %s=%v", r.ID, r.NormScore)
		}
	}
}

func TestFuseKeepsDuplicateURLsAcrossOrigins(t *testing.T) {
	indexed := []domain.Candidate{{ID: "idx-1", URL: "https://example.com/x", Score: 1}}
	web := []domain.Candidate{{ID: "web-1", URL: "https://example.com/x", RelevanceScore: 10}}

	fused := fuseCandidates(indexed, web, 10)
	if len(fused) != 2 {
		t.Fatalf("identical URLs across origins must both survive, got %d results", len(fused))
	}
}

func TestBuildHighlightPrefersStoreFragment(t *testing.T) {
	c := domain.Candidate{
		Highlight: "matched <em>fragment</em>",
		Content:   strings.Repeat("x", 500),
	}
	if got := buildHighlight(c); got != "matched <em>fragment</em>" {
		t.Fatalf("expected store fragment, got %q", got)
	}
}

func TestBuildHighlightTruncatesLongContent(t *testing.T) {
	c := domain.Candidate{Content: strings.Repeat("я", 300)}
	got := buildHighlight(c)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
	if n := len([]rune(got)); n != highlightMaxChars+3 {
		t.Fatalf("expected %d runes, got %d", highlightMaxChars+3, n)
	}
}

func TestBuildSourceFacetsDistinctFirstSeen(t *testing.T) {
	indexed := []domain.Candidate{
		{Source: "arxiv"},
		{Source: "web"},
	}
	web := []domain.Candidate{
		{Source: "arxiv"},
		{Source: ""},
	}

	facets := buildSourceFacets(indexed, web)
	if len(facets) != 3 {
		t.Fatalf("expected 3 distinct facets, got %d", len(facets))
	}
	if facets[0].Label != "arxiv" || facets[1].Label != "web" || facets[2].Label != "unknown" {
		t.Fatalf("unexpected facet order: %+v", facets)
	}
	for _, f := range facets {
		if !f.Enabled {
			t.Fatalf("all facets must start enabled: %+v", f)
		}
	}
}
