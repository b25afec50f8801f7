package ports

import (
	"context"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

// SearchService is the inbound contract for the retrieval-and-synthesis pipeline.
// Search runs the full pipeline and returns the assembled envelope. When onChunk
// is non-nil it receives answer text fragments in arrival order before the
// envelope is returned.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest, onChunk func(string)) (*domain.SearchResponse, error)
}

// SearchHistoryReader is the inbound read model for persisted search records.
type SearchHistoryReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.SearchRecord, error)
}
