package hybrid

import (
	"sort"

	"rag-agent-be/pkg/retrieval"
)

// Document is one merged candidate for a single query. Raw scores keep each
// backend's own scale; normalized scores are relative to the maximum raw
// score of their own list for THIS query, so combined scores are not
// comparable across different queries or turns.
type Document struct {
	SourceID          string  `json:"source_id"`
	Title             string  `json:"title"`
	URL               string  `json:"url"`
	Content           string  `json:"content"`
	VectorScore       float64 `json:"vector_score"`
	LexicalScore      float64 `json:"lexical_score"`
	NormalizedVector  float64 `json:"normalized_vector"`
	NormalizedLexical float64 `json:"normalized_lexical"`
	CombinedScore     float64 `json:"combined_score"`
}

// Merger linearly combines one vector result list and one lexical result
// list into a single ranking: combined = alpha*vector + (1-alpha)*lexical,
// each normalized by its own list maximum.
type Merger struct {
	alpha float64
}

func NewMerger(alpha float64) *Merger {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Merger{alpha: alpha}
}

// Merge deduplicates by source id, combines normalized scores and returns
// the top k. A document missing from one backend contributes 0 for that
// term. Ties keep input order, vector list first.
func (m *Merger) Merge(vectorHits, lexicalHits []retrieval.ScoredDocument, k int) []Document {
	maxVector := maxRawScore(vectorHits)
	maxLexical := maxRawScore(lexicalHits)

	index := make(map[string]int)
	merged := make([]Document, 0, len(vectorHits)+len(lexicalHits))

	for _, hit := range vectorHits {
		normalized := normalize(hit.RawScore, maxVector)
		if _, ok := index[hit.SourceID]; ok {
			// Duplicate inside the vector list itself; first (higher) wins
			continue
		}
		index[hit.SourceID] = len(merged)
		merged = append(merged, Document{
			SourceID:         hit.SourceID,
			Title:            hit.Title,
			URL:              hit.URL,
			Content:          hit.Content,
			VectorScore:      hit.RawScore,
			NormalizedVector: normalized,
			CombinedScore:    m.alpha * normalized,
		})
	}

	seenLexical := make(map[string]bool)
	for _, hit := range lexicalHits {
		if seenLexical[hit.SourceID] {
			continue
		}
		seenLexical[hit.SourceID] = true

		normalized := normalize(hit.RawScore, maxLexical)
		if i, ok := index[hit.SourceID]; ok {
			merged[i].LexicalScore = hit.RawScore
			merged[i].NormalizedLexical = normalized
			merged[i].CombinedScore += (1 - m.alpha) * normalized
			continue
		}
		index[hit.SourceID] = len(merged)
		merged = append(merged, Document{
			SourceID:          hit.SourceID,
			Title:             hit.Title,
			URL:               hit.URL,
			Content:           hit.Content,
			LexicalScore:      hit.RawScore,
			NormalizedLexical: normalized,
			CombinedScore:     (1 - m.alpha) * normalized,
		})
	}

	// Stable sort keeps insertion order (vector list first) for equal scores
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CombinedScore > merged[j].CombinedScore
	})

	if k > 0 && len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

// maxRawScore follows the per-list normalization rules: 1 for an empty list
// so the division is inert, the true maximum otherwise.
func maxRawScore(hits []retrieval.ScoredDocument) float64 {
	if len(hits) == 0 {
		return 1
	}
	max := hits[0].RawScore
	for _, hit := range hits[1:] {
		if hit.RawScore > max {
			max = hit.RawScore
		}
	}
	return max
}

// normalize divides by the list maximum, with 0 as the zero-max fallback.
func normalize(raw, max float64) float64 {
	if max == 0 {
		return 0
	}
	return raw / max
}
