package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/rag/expand"
	"rag-agent-be/pkg/rag/hybrid"
	"rag-agent-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryClient replays hits per query. Safe for the stage's concurrent use.
type queryClient struct {
	mu          sync.Mutex
	hitsByQuery map[string][]retrieval.ScoredDocument
	failQueries map[string]bool
	scopes      [][]string
}

func (f *queryClient) Search(ctx context.Context, query string, k int) ([]retrieval.ScoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failQueries[query] {
		return nil, errors.New("backend unavailable")
	}
	return f.hitsByQuery[query], nil
}

func (f *queryClient) Scoped(allowedAuthors []string) retrieval.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, allowedAuthors)
	return f
}

func hit(id string, score float64) retrieval.ScoredDocument {
	return retrieval.ScoredDocument{SourceID: id, Title: "t-" + id, URL: "https://example.com/" + id, RawScore: score}
}

func newStage(vector *queryClient, k int) *Stage {
	lexical := &queryClient{}
	searcher := hybrid.NewSearcher(vector, lexical, hybrid.NewMerger(0.5), 3, logger.NewNopLogger())
	return NewStage(searcher, k, logger.NewNopLogger())
}

func variants(texts ...string) []expand.Variant {
	out := make([]expand.Variant, len(texts))
	for i, text := range texts {
		out[i] = expand.Variant{Text: text, Origin: expand.OriginParaphrase}
	}
	return out
}

func TestRetrieveUnionsKeepingMaxScore(t *testing.T) {
	vector := &queryClient{hitsByQuery: map[string][]retrieval.ScoredDocument{
		// combined = 0.5 * raw/maxraw with vector-only hits
		"qa": {hit("a", 1.0), hit("b", 0.5)}, // a: 0.5, b: 0.25
		"qb": {hit("b", 1.0), hit("c", 0.25)}, // b: 0.5, c: 0.125
	}}
	stage := newStage(vector, 4)

	docs := stage.Retrieve(context.Background(), variants("qa", "qb"), nil)
	require.Len(t, docs, 3)

	// b keeps its best score across variants
	scores := map[string]float64{}
	for _, doc := range docs {
		scores[doc.SourceID] = doc.CombinedScore
	}
	assert.InDelta(t, 0.5, scores["a"], 1e-9)
	assert.InDelta(t, 0.5, scores["b"], 1e-9)
	assert.InDelta(t, 0.125, scores["c"], 1e-9)

	// Ties resolve by variant order, so a (first contributed) leads
	assert.Equal(t, "a", docs[0].SourceID)
	assert.Equal(t, "b", docs[1].SourceID)
	assert.Equal(t, "c", docs[2].SourceID)
}

func TestRetrieveSkipsFailedVariant(t *testing.T) {
	vector := &queryClient{
		hitsByQuery: map[string][]retrieval.ScoredDocument{
			"good": {hit("a", 1.0)},
		},
		failQueries: map[string]bool{"bad": true},
	}
	stage := newStage(vector, 4)

	docs := stage.Retrieve(context.Background(), variants("good", "bad"), nil)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].SourceID)
}

func TestRetrieveTruncatesToK(t *testing.T) {
	vector := &queryClient{hitsByQuery: map[string][]retrieval.ScoredDocument{
		"q": {hit("a", 1.0), hit("b", 0.9), hit("c", 0.8), hit("d", 0.7)},
	}}
	stage := newStage(vector, 2)

	docs := stage.Retrieve(context.Background(), variants("q"), nil)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].SourceID)
	assert.Equal(t, "b", docs[1].SourceID)
}

func TestRetrieveScopesSearchers(t *testing.T) {
	vector := &queryClient{hitsByQuery: map[string][]retrieval.ScoredDocument{}}
	stage := newStage(vector, 4)

	stage.Retrieve(context.Background(), variants("q"), []string{"alice"})

	vector.mu.Lock()
	defer vector.mu.Unlock()
	require.NotEmpty(t, vector.scopes)
	assert.Equal(t, []string{"alice"}, vector.scopes[0])
}

func TestRetrieveNoVariants(t *testing.T) {
	stage := newStage(&queryClient{}, 4)
	assert.Empty(t, stage.Retrieve(context.Background(), nil, nil))
}

func TestRetrieveDeterministicAcrossRuns(t *testing.T) {
	vector := &queryClient{hitsByQuery: map[string][]retrieval.ScoredDocument{
		"q1": {hit("a", 0.5), hit("b", 0.5)},
		"q2": {hit("c", 0.5), hit("d", 0.5)},
	}}
	stage := newStage(vector, 4)

	first := stage.Retrieve(context.Background(), variants("q1", "q2"), nil)
	for i := 0; i < 10; i++ {
		again := stage.Retrieve(context.Background(), variants("q1", "q2"), nil)
		assert.Equal(t, first, again)
	}
}
