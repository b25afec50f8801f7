package usecase

import "testing"

func TestGroundednessVerbatimExcerptScoresFull(t *testing.T) {
	scorer := NewLexicalGroundednessScorer()
	contextText := "Quantum computers exploit superposition and entanglement to solve certain problems faster."
	response := "Quantum computers exploit superposition and entanglement"

	if got := scorer.Score(response, contextText); got != 1.0 {
		t.Fatalf("verbatim excerpt should score 1.0, got %v", got)
	}
}

func TestGroundednessUnrelatedResponseScoresLow(t *testing.T) {
	scorer := NewLexicalGroundednessScorer()
	contextText := "Quantum computers exploit superposition and entanglement."
	response := "Bake bread at home using flour yeast water"

	if got := scorer.Score(response, contextText); got > 0.3 {
		t.Fatalf("unrelated response should score low, got %v", got)
	}
}

func TestGroundednessEmptyInputs(t *testing.T) {
	scorer := NewLexicalGroundednessScorer()
	if got := scorer.Score("", "some context words here"); got != 0 {
		t.Fatalf("empty response should score 0, got %v", got)
	}
	if got := scorer.Score("some answer", ""); got != 0 {
		t.Fatalf("empty context should score 0, got %v", got)
	}
}

func TestGroundednessIgnoresShortContextWords(t *testing.T) {
	scorer := NewLexicalGroundednessScorer()
	// Every context word is four characters or fewer, so no significant terms.
	if got := scorer.Score("word", "a an the of to in is"); got != 0 {
		t.Fatalf("context without significant terms should score 0, got %v", got)
	}
}

func TestGroundednessCountsRunesNotBytes(t *testing.T) {
	scorer := NewLexicalGroundednessScorer()
	// Cyrillic words here are 2-4 characters but 4-8 bytes; none qualify as
	// significant terms, so even an exact word match scores zero.
	if got := scorer.Score("это", "не на для это или"); got != 0 {
		t.Fatalf("short multibyte context words must not be significant, got %v", got)
	}
	// A 5-character Cyrillic word still counts.
	if got := scorer.Score("квант", "квант"); got != 1.0 {
		t.Fatalf("5-rune multibyte term should ground a matching word, got %v", got)
	}
}
