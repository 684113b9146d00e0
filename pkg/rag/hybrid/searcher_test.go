package hybrid

import (
	"context"
	"errors"
	"testing"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient replays canned hits, optionally failing the first n calls.
type fakeClient struct {
	hits      []retrieval.ScoredDocument
	failures  int
	calls     int
	lastK     int
	lastScope []string
}

func (f *fakeClient) Search(ctx context.Context, query string, k int) ([]retrieval.ScoredDocument, error) {
	f.calls++
	f.lastK = k
	if f.calls <= f.failures {
		return nil, errors.New("backend unavailable")
	}
	return f.hits, nil
}

func (f *fakeClient) Scoped(allowedAuthors []string) retrieval.Client {
	f.lastScope = allowedAuthors
	return f
}

func TestSearchMergesBothBackends(t *testing.T) {
	vector := &fakeClient{hits: []retrieval.ScoredDocument{vecHit("a", 0.9)}}
	lexical := &fakeClient{hits: []retrieval.ScoredDocument{vecHit("b", 4)}}
	searcher := NewSearcher(vector, lexical, NewMerger(0.5), 3, logger.NewNopLogger())

	docs, err := searcher.Search(context.Background(), "how to open a cafe", 4)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestSearchOversamplesAndCaps(t *testing.T) {
	vector := &fakeClient{}
	lexical := &fakeClient{}
	searcher := NewSearcher(vector, lexical, NewMerger(0.5), 3, logger.NewNopLogger())

	_, err := searcher.Search(context.Background(), "q", 4)
	require.NoError(t, err)
	assert.Equal(t, 12, vector.lastK)
	assert.Equal(t, 12, lexical.lastK)

	_, err = searcher.Search(context.Background(), "q", 30)
	require.NoError(t, err)
	assert.Equal(t, 50, vector.lastK)
	assert.Equal(t, 50, lexical.lastK)
}

func TestSearchDegradesWhenOneBackendFails(t *testing.T) {
	vector := &fakeClient{failures: 99}
	lexical := &fakeClient{hits: []retrieval.ScoredDocument{vecHit("b", 4)}}
	searcher := NewSearcher(vector, lexical, NewMerger(0.5), 3, logger.NewNopLogger())

	docs, err := searcher.Search(context.Background(), "q", 4)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].SourceID)
}

func TestSearchFailsWhenBothBackendsFail(t *testing.T) {
	vector := &fakeClient{failures: 99}
	lexical := &fakeClient{failures: 99}
	searcher := NewSearcher(vector, lexical, NewMerger(0.5), 3, logger.NewNopLogger())

	_, err := searcher.Search(context.Background(), "q", 4)
	assert.Error(t, err)
}

func TestSearchRetriesOnce(t *testing.T) {
	vector := &fakeClient{failures: 1, hits: []retrieval.ScoredDocument{vecHit("a", 0.9)}}
	lexical := &fakeClient{}
	searcher := NewSearcher(vector, lexical, NewMerger(0.5), 3, logger.NewNopLogger())

	docs, err := searcher.Search(context.Background(), "q", 4)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 2, vector.calls)
}

func TestScopedPropagatesAuthors(t *testing.T) {
	vector := &fakeClient{}
	lexical := &fakeClient{}
	searcher := NewSearcher(vector, lexical, NewMerger(0.5), 3, logger.NewNopLogger())

	scoped := searcher.Scoped([]string{"alice", "bob"})
	_, err := scoped.Search(context.Background(), "q", 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, vector.lastScope)
	assert.Equal(t, []string{"alice", "bob"}, lexical.lastScope)
}
