package retriever

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/advisor-core/server/internal/agent/model"
	logx "github.com/advisor-core/server/pkg/logger"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
)

// DefaultClass is the Weaviate class holding the sales knowledge base chunks.
const DefaultClass = "KnowledgeChunk"

// maxQueryLen bounds the text sent to the vectorizer.
const maxQueryLen = 2048

// WeaviateRetriever performs nearText semantic search against a single class.
type WeaviateRetriever struct {
	client *weaviate.Client
	class  string
}

func NewWeaviateRetriever(client *weaviate.Client, class string) *WeaviateRetriever {
	if class == "" {
		class = DefaultClass
	}
	return &WeaviateRetriever{client: client, class: class}
}

// Search returns up to topK chunks ordered by descending certainty.
// Errors are logged and swallowed; the turn proceeds ungrounded.
func (r *WeaviateRetriever) Search(ctx context.Context, query string, topK int) []model.ContextChunk {
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	if r.client == nil {
		logx.Warn().Msg("retriever has no weaviate client; returning empty context")
		return nil
	}
	query = cutAtRune(query, maxQueryLen)

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "certainty"},
		}},
	}

	resp, err := r.client.GraphQL().Get().
		WithClassName(r.class).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		logx.Error().Err(err).Str("class", r.class).Msg("weaviate search failed; returning empty context")
		return nil
	}
	if len(resp.Errors) > 0 {
		logx.Error().Str("class", r.class).Str("graphql_error", resp.Errors[0].Message).
			Msg("weaviate graphql error; returning empty context")
		return nil
	}

	chunks := parseChunks(resp, r.class)
	logx.Debug().Int("count", len(chunks)).Str("class", r.class).Msg("retrieved context chunks")
	return chunks
}

// parseChunks unpacks the untyped GraphQL Get payload into context chunks.
// Malformed entries are skipped rather than failing the whole result.
func parseChunks(resp *wmodels.GraphQLResponse, class string) []model.ContextChunk {
	if resp == nil {
		return nil
	}
	get, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	rows, ok := get[class].([]any)
	if !ok {
		return nil
	}

	chunks := make([]model.ContextChunk, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		content, _ := obj["content"].(string)
		if content == "" {
			continue
		}
		chunk := model.ContextChunk{Snippet: content, Metadata: map[string]any{}}
		if source, ok := obj["source"].(string); ok && source != "" {
			chunk.Metadata["source"] = source
		}
		if add, ok := obj["_additional"].(map[string]any); ok {
			if id, ok := add["id"].(string); ok {
				chunk.ID = id
			}
			if certainty, ok := add["certainty"].(float64); ok {
				chunk.Score = certainty
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// cutAtRune caps s at n bytes without splitting a multi-byte rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var _ Retriever = (*WeaviateRetriever)(nil)
