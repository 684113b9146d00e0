package retrieval

import (
	"context"
	"fmt"

	"rag-agent-be/internal/repository/contract"
	"rag-agent-be/pkg/embedding"
)

// VectorClient searches the embedding index. The query is embedded first,
// then matched by cosine similarity.
type VectorClient struct {
	provider embedding.EmbeddingProvider
	repo     contract.DocumentRepository
	authors  []string
}

var _ Client = &VectorClient{}

func NewVectorClient(provider embedding.EmbeddingProvider, repo contract.DocumentRepository) *VectorClient {
	return &VectorClient{
		provider: provider,
		repo:     repo,
	}
}

func (c *VectorClient) Scoped(allowedAuthors []string) Client {
	scoped := *c
	scoped.authors = allowedAuthors
	return &scoped
}

func (c *VectorClient) Search(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	embeddingRes, err := c.provider.Generate(ctx, query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	rows, err := c.repo.SearchSimilarWithScore(ctx, embeddingRes.Embedding.Values, k, c.authors)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return dedupeBySource(rows), nil
}

// dedupeBySource keeps the first (highest scored) hit per source id. The
// embedding index stores one row per chunk, so a document can match a query
// several times.
func dedupeBySource(rows []*contract.ScoredDocument) []ScoredDocument {
	seen := make(map[string]bool)
	docs := make([]ScoredDocument, 0, len(rows))
	for _, row := range rows {
		if seen[row.Document.SourceId] {
			continue
		}
		seen[row.Document.SourceId] = true
		docs = append(docs, ScoredDocument{
			SourceID: row.Document.SourceId,
			Title:    row.Document.Title,
			URL:      row.Document.Url,
			Content:  row.Document.Content,
			RawScore: row.Score,
		})
	}
	return docs
}
