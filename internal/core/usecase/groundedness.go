package usecase

import (
	"strings"
	"unicode/utf8"
)

const significantTermMinChars = 5

// LexicalGroundednessScorer approximates how much of a response is traceable
// to the supplied context by lexical overlap: context words longer than four
// characters are significant terms, and a response word counts as grounded
// when it contains or is contained by any of them. This is a heuristic, not a
// semantic check.
type LexicalGroundednessScorer struct{}

func NewLexicalGroundednessScorer() *LexicalGroundednessScorer {
	return &LexicalGroundednessScorer{}
}

func (s *LexicalGroundednessScorer) Score(response string, contextText string) float64 {
	responseWords := strings.Fields(strings.ToLower(response))
	if len(responseWords) == 0 {
		return 0
	}

	terms := make([]string, 0, 64)
	for _, w := range strings.Fields(strings.ToLower(contextText)) {
		if utf8.RuneCountInString(w) >= significantTermMinChars {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return 0
	}

	grounded := 0
	for _, word := range responseWords {
		for _, term := range terms {
			if strings.Contains(term, word) || strings.Contains(word, term) {
				grounded++
				break
			}
		}
	}
	return float64(grounded) / float64(len(responseWords))
}
