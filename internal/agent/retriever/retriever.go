package retriever

import (
	"context"

	"github.com/advisor-core/server/internal/agent/model"
)

// Retriever turns a raw user utterance into ranked grounding snippets.
//
// Implementations fail softly: any backend error yields an empty slice, not
// an error, so callers treat empty context as "no grounding available".
type Retriever interface {
	Search(ctx context.Context, query string, topK int) []model.ContextChunk
}
