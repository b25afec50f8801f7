package config

import "testing"

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("WEB_RESULT_LIMIT", "")
	t.Setenv("DEFAULT_NUM_SOURCES", "")
	t.Setenv("SYNTHESIS_TIMEOUT_SECONDS", "")
	t.Setenv("NATS_SUBJECT", "")

	cfg := Load()
	if cfg.WebResultLimit != 15 {
		t.Fatalf("expected default web result limit 15, got %d", cfg.WebResultLimit)
	}
	if cfg.DefaultNumSources != 10 {
		t.Fatalf("expected default num sources 10, got %d", cfg.DefaultNumSources)
	}
	if cfg.SynthesisTimeoutSecs != 60 {
		t.Fatalf("expected default synthesis timeout 60, got %d", cfg.SynthesisTimeoutSecs)
	}
	if cfg.NATSSubject != "candidates.ingest" {
		t.Fatalf("expected default subject candidates.ingest, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("WEB_RESULT_LIMIT", "25")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("API_RATE_LIMIT_BURST", "5")
	t.Setenv("ELASTIC_VECTOR_DIMS", "1536")

	cfg := Load()
	if cfg.WebResultLimit != 25 {
		t.Fatalf("expected web result limit 25, got %d", cfg.WebResultLimit)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.APIRateLimitBurst != 5 {
		t.Fatalf("expected rate limit burst 5, got %d", cfg.APIRateLimitBurst)
	}
	if cfg.ElasticVectorDims != 1536 {
		t.Fatalf("expected vector dims 1536, got %d", cfg.ElasticVectorDims)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("RETRIEVE_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("API_RATE_LIMIT_RPS", "fast")

	cfg := Load()
	if cfg.RetrieveTimeoutSeconds != 30 {
		t.Fatalf("expected fallback retrieve timeout 30, got %d", cfg.RetrieveTimeoutSeconds)
	}
	if cfg.APIRateLimitRPS != 10 {
		t.Fatalf("expected fallback rate limit rps 10, got %v", cfg.APIRateLimitRPS)
	}
}
