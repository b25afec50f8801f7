package usecase

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

const (
	webNativeScale    = 10.0
	highlightMaxChars = 200
)

// fuseCandidates merges indexed and web candidates into a single ranked list.
// Score normalization: web relevance_score/10; indexed native score divided by
// the maximum observed in the batch when that maximum exceeds 1, pass-through
// otherwise. Indexed candidates go first so the stable sort breaks exact ties
// in their favor, then by discovery order. Identical URLs across origins are
// kept as separate entries.
func fuseCandidates(indexed, web []domain.Candidate, limit int) []domain.FusedResult {
	out := make([]domain.FusedResult, 0, len(indexed)+len(web))

	indexedDivisor := 1.0
	for _, c := range indexed {
		if c.Score > indexedDivisor {
			indexedDivisor = c.Score
		}
	}
	for _, c := range indexed {
		c.Origin = domain.OriginIndexed
		out = append(out, domain.FusedResult{
			Candidate: c,
			NormScore: clampUnit(c.Score / indexedDivisor),
		})
	}
	for _, c := range web {
		c.Origin = domain.OriginWeb
		out = append(out, domain.FusedResult{
			Candidate: c,
			NormScore: clampUnit(c.RelevanceScore / webNativeScale),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NormScore > out[j].NormScore
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
		out[i].Highlight = buildHighlight(out[i].Candidate)
	}
	return out
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// buildHighlight prefers the store-provided highlight fragment and otherwise
// truncates content (or snippet) to a bounded excerpt.
func buildHighlight(c domain.Candidate) string {
	if h := strings.TrimSpace(c.Highlight); h != "" {
		return h
	}
	text := c.Content
	if strings.TrimSpace(text) == "" {
		text = c.Snippet
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) <= highlightMaxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:highlightMaxChars]) + "..."
}

// buildSourceFacets derives the distinct source values across every retrieved
// candidate, before any fusion truncation, in first-seen order. All facets
// start enabled for caller-side filtering.
func buildSourceFacets(batches ...[]domain.Candidate) []domain.SourceFacet {
	seen := make(map[string]struct{})
	var facets []domain.SourceFacet
	for _, batch := range batches {
		for _, c := range batch {
			source := strings.TrimSpace(c.Source)
			if source == "" {
				source = "unknown"
			}
			if _, ok := seen[source]; ok {
				continue
			}
			seen[source] = struct{}{}
			facets = append(facets, domain.SourceFacet{
				ID:      len(facets) + 1,
				Label:   source,
				Enabled: true,
			})
		}
	}
	return facets
}
