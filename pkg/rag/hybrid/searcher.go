package hybrid

import (
	"context"
	"fmt"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/retrieval"
)

// maxOversample caps how many candidates each backend is asked for,
// whatever the configured multiplier says.
const maxOversample = 50

// Searcher runs one query against both backends and merges the results.
type Searcher struct {
	vector     retrieval.Client
	lexical    retrieval.Client
	merger     *Merger
	multiplier int
	logger     logger.ILogger
}

func NewSearcher(vector, lexical retrieval.Client, merger *Merger, multiplier int, log logger.ILogger) *Searcher {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Searcher{
		vector:     vector,
		lexical:    lexical,
		merger:     merger,
		multiplier: multiplier,
		logger:     log,
	}
}

// Scoped returns a copy whose backends are restricted to allowedAuthors.
func (s *Searcher) Scoped(allowedAuthors []string) *Searcher {
	scoped := *s
	scoped.vector = s.vector.Scoped(allowedAuthors)
	scoped.lexical = s.lexical.Scoped(allowedAuthors)
	return &scoped
}

// Search oversamples both backends and merges down to k. A single failing
// backend degrades to the other one's results; the query only fails when
// both backends fail.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]Document, error) {
	oversample := k * s.multiplier
	if oversample > maxOversample {
		oversample = maxOversample
	}

	vectorHits, vectorErr := searchWithRetry(ctx, s.vector, query, oversample)
	if vectorErr != nil {
		s.logger.Warn("HybridSearcher", "Vector backend failed, degrading to lexical only", map[string]interface{}{
			"query": query,
			"error": vectorErr.Error(),
		})
	}

	lexicalHits, lexicalErr := searchWithRetry(ctx, s.lexical, query, oversample)
	if lexicalErr != nil {
		s.logger.Warn("HybridSearcher", "Lexical backend failed, degrading to vector only", map[string]interface{}{
			"query": query,
			"error": lexicalErr.Error(),
		})
	}

	if vectorErr != nil && lexicalErr != nil {
		return nil, fmt.Errorf("both retrieval backends failed: vector: %v, lexical: %v", vectorErr, lexicalErr)
	}

	return s.merger.Merge(vectorHits, lexicalHits, k), nil
}

// searchWithRetry retries once; backend reads are idempotent.
func searchWithRetry(ctx context.Context, client retrieval.Client, query string, k int) ([]retrieval.ScoredDocument, error) {
	hits, err := client.Search(ctx, query, k)
	if err == nil {
		return hits, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	return client.Search(ctx, query, k)
}
