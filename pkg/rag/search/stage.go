package search

import (
	"context"
	"sort"
	"sync"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/rag/expand"
	"rag-agent-be/pkg/rag/hybrid"
)

// Stage fans query variants out across the hybrid searcher in parallel and
// unions the per-variant rankings into one candidate set.
type Stage struct {
	searcher *hybrid.Searcher
	k        int
	logger   logger.ILogger
}

func NewStage(searcher *hybrid.Searcher, k int, log logger.ILogger) *Stage {
	if k <= 0 {
		k = 4
	}
	return &Stage{
		searcher: searcher,
		k:        k,
		logger:   log,
	}
}

// Retrieve runs one goroutine per variant and waits for all of them. A
// failed variant contributes nothing; the union is built in variant order so
// the final ranking is deterministic for identical inputs.
func (s *Stage) Retrieve(ctx context.Context, variants []expand.Variant, allowedAuthors []string) []hybrid.Document {
	searcher := s.searcher.Scoped(allowedAuthors)

	results := make([][]hybrid.Document, len(variants))
	var wg sync.WaitGroup

	for i, variant := range variants {
		wg.Add(1)
		go func(slot int, v expand.Variant) {
			defer wg.Done()

			docs, err := searcher.Search(ctx, v.Text, s.k)
			if err != nil {
				s.logger.Warn("RetrievalStage", "Variant retrieval failed, skipping", map[string]interface{}{
					"query":  v.Text,
					"origin": string(v.Origin),
					"error":  err.Error(),
				})
				return
			}
			results[slot] = docs
		}(i, variant)
	}

	wg.Wait()

	// Union by source id, keeping the best combined score seen across
	// variants for each document.
	index := make(map[string]int)
	var union []hybrid.Document
	for _, docs := range results {
		for _, doc := range docs {
			if i, ok := index[doc.SourceID]; ok {
				if doc.CombinedScore > union[i].CombinedScore {
					union[i] = doc
				}
				continue
			}
			index[doc.SourceID] = len(union)
			union = append(union, doc)
		}
	}

	sort.SliceStable(union, func(i, j int) bool {
		return union[i].CombinedScore > union[j].CombinedScore
	})

	if len(union) > s.k {
		union = union[:s.k]
	}

	s.logger.Debug("RetrievalStage", "Variants merged", map[string]interface{}{
		"variants":   len(variants),
		"candidates": len(union),
	})
	return union
}
