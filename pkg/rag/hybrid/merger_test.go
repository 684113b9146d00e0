package hybrid

import (
	"testing"

	"rag-agent-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vecHit(id string, score float64) retrieval.ScoredDocument {
	return retrieval.ScoredDocument{SourceID: id, Title: "t-" + id, URL: "https://example.com/" + id, Content: "c-" + id, RawScore: score}
}

func TestMergeCombinesNormalizedScores(t *testing.T) {
	merger := NewMerger(0.5)

	vector := []retrieval.ScoredDocument{vecHit("a", 0.8), vecHit("b", 0.4)}
	lexical := []retrieval.ScoredDocument{vecHit("b", 10), vecHit("c", 5)}

	merged := merger.Merge(vector, lexical, 10)
	require.Len(t, merged, 3)

	// b: vector 0.4/0.8 = 0.5, lexical 10/10 = 1.0 -> 0.5*0.5 + 0.5*1.0 = 0.75
	assert.Equal(t, "b", merged[0].SourceID)
	assert.InDelta(t, 0.75, merged[0].CombinedScore, 1e-9)

	// a: vector 0.8/0.8 = 1.0, no lexical -> 0.5
	assert.Equal(t, "a", merged[1].SourceID)
	assert.InDelta(t, 0.5, merged[1].CombinedScore, 1e-9)
	assert.Zero(t, merged[1].NormalizedLexical)

	// c: lexical 5/10 = 0.5 -> 0.25
	assert.Equal(t, "c", merged[2].SourceID)
	assert.InDelta(t, 0.25, merged[2].CombinedScore, 1e-9)
}

func TestMergeAlphaWeighting(t *testing.T) {
	merger := NewMerger(1)

	vector := []retrieval.ScoredDocument{vecHit("a", 0.9)}
	lexical := []retrieval.ScoredDocument{vecHit("b", 100)}

	merged := merger.Merge(vector, lexical, 10)
	require.Len(t, merged, 2)

	// alpha=1 means lexical-only documents score 0
	assert.Equal(t, "a", merged[0].SourceID)
	assert.InDelta(t, 1.0, merged[0].CombinedScore, 1e-9)
	assert.Equal(t, "b", merged[1].SourceID)
	assert.Zero(t, merged[1].CombinedScore)
}

func TestMergeDeduplicatesBySourceId(t *testing.T) {
	merger := NewMerger(0.5)

	vector := []retrieval.ScoredDocument{vecHit("a", 0.9), vecHit("a", 0.2)}
	lexical := []retrieval.ScoredDocument{vecHit("a", 3), vecHit("a", 1)}

	merged := merger.Merge(vector, lexical, 10)
	require.Len(t, merged, 1)

	// First (highest ranked) occurrence wins in both lists
	assert.InDelta(t, 0.9, merged[0].VectorScore, 1e-9)
	assert.InDelta(t, 3.0, merged[0].LexicalScore, 1e-9)
	assert.InDelta(t, 1.0, merged[0].CombinedScore, 1e-9)
}

func TestMergeEmptyLists(t *testing.T) {
	merger := NewMerger(0.5)

	t.Run("both empty", func(t *testing.T) {
		assert.Empty(t, merger.Merge(nil, nil, 4))
	})

	t.Run("vector only", func(t *testing.T) {
		merged := merger.Merge([]retrieval.ScoredDocument{vecHit("a", 0.5)}, nil, 4)
		require.Len(t, merged, 1)
		assert.InDelta(t, 0.5, merged[0].CombinedScore, 1e-9)
	})

	t.Run("lexical only", func(t *testing.T) {
		merged := merger.Merge(nil, []retrieval.ScoredDocument{vecHit("a", 7)}, 4)
		require.Len(t, merged, 1)
		assert.InDelta(t, 0.5, merged[0].CombinedScore, 1e-9)
	})
}

func TestMergeZeroMaxScores(t *testing.T) {
	merger := NewMerger(0.5)

	vector := []retrieval.ScoredDocument{vecHit("a", 0)}
	lexical := []retrieval.ScoredDocument{vecHit("b", 0)}

	merged := merger.Merge(vector, lexical, 10)
	require.Len(t, merged, 2)
	for _, doc := range merged {
		assert.Zero(t, doc.CombinedScore)
	}
}

func TestMergeTruncatesToK(t *testing.T) {
	merger := NewMerger(0.5)

	vector := []retrieval.ScoredDocument{
		vecHit("a", 0.9), vecHit("b", 0.8), vecHit("c", 0.7), vecHit("d", 0.6),
	}

	merged := merger.Merge(vector, nil, 2)
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].SourceID)
	assert.Equal(t, "b", merged[1].SourceID)
}

func TestMergeDeterministicTieBreak(t *testing.T) {
	merger := NewMerger(0.5)

	// a and b tie exactly; insertion order (vector list order) must hold
	vector := []retrieval.ScoredDocument{vecHit("a", 0.5), vecHit("b", 0.5)}

	for i := 0; i < 20; i++ {
		merged := merger.Merge(vector, nil, 10)
		require.Len(t, merged, 2)
		assert.Equal(t, "a", merged[0].SourceID)
		assert.Equal(t, "b", merged[1].SourceID)
	}
}

func TestNewMergerClampsAlpha(t *testing.T) {
	assert.Equal(t, 0.0, NewMerger(-2).alpha)
	assert.Equal(t, 1.0, NewMerger(3).alpha)
	assert.Equal(t, 0.7, NewMerger(0.7).alpha)
}
